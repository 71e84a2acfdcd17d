package workflow

// Layout spacing constants. Chosen for readable rendering without a
// graph layout engine.
const (
	layoutOriginX = 80
	layoutOriginY = 80
	layoutColGap  = 200
	layoutRowGap  = 150
)

// NodeLayout is the render position of one step.
type NodeLayout struct {
	StepID string `json:"step_id"`
	Layer  int    `json:"layer"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
}

// Layout assigns each step a deterministic (x, y) position: one column
// per parallel layer, one row per node within the layer.
func Layout(d *DAG) ([]NodeLayout, error) {
	layers, err := d.ParallelGroups()
	if err != nil {
		return nil, err
	}
	var nodes []NodeLayout
	for layerIdx, layer := range layers {
		for nodeIdx, id := range layer {
			nodes = append(nodes, NodeLayout{
				StepID: id,
				Layer:  layerIdx,
				X:      layoutOriginX + layerIdx*layoutColGap,
				Y:      layoutOriginY + nodeIdx*layoutRowGap,
			})
		}
	}
	return nodes, nil
}
