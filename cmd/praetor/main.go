// Praetor orchestration engine. Runs the agent loop, workflow executor,
// governance, and the HTTP API, plus a small operator command surface.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/praetorworks/praetor/pkg/version"
)

const usage = `praetor - autonomous agent orchestration engine

Usage:
  praetor [serve] [flags]          start the engine (default command)
  praetor init <name> --kind agent|workflow
                                   scaffold a definition file
  praetor run <workflow> --inputs <json>
                                   execute a workflow on a running engine
  praetor test                     run the module's test suite
  praetor status                   probe a running engine
  praetor version                  print the build version

Server commands honor PRAETOR_SERVER (default http://127.0.0.1:8080).
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cmd := "serve"
	rest := args
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd = args[0]
		rest = args[1:]
	}

	switch cmd {
	case "serve":
		return runServe(rest)
	case "init":
		return runInit(rest)
	case "run":
		return runWorkflow(rest)
	case "test":
		return runTests(rest)
	case "status":
		return runStatus(rest)
	case "version":
		fmt.Println(version.Full())
		return 0
	case "help", "-h", "--help":
		fmt.Print(usage)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		return 1
	}
}

func serverURL() string {
	if s := os.Getenv("PRAETOR_SERVER"); s != "" {
		return strings.TrimRight(s, "/")
	}
	return "http://127.0.0.1:8080"
}

func httpClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Minute}
}

// runInit scaffolds an agent or workflow definition YAML in the current
// directory. Parsing errors exit before any file is touched.
func runInit(args []string) int {
	var name, kind string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--kind", "-kind":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "init: --kind requires a value")
				return 1
			}
			kind = args[i]
		default:
			if name != "" {
				fmt.Fprintf(os.Stderr, "init: unexpected argument %q\n", args[i])
				return 1
			}
			name = args[i]
		}
	}
	if name == "" {
		fmt.Fprintln(os.Stderr, "init: definition name required")
		return 1
	}
	if kind == "" {
		kind = "agent"
	}

	var body string
	switch kind {
	case "agent":
		body = fmt.Sprintf(`agents:
  %[1]s:
    version: 0.1.0
    role: worker
    description: ""
    model: claude-sonnet-4-5
    tools: [shell, file_ops]
    autonomy: supervised
    constraints:
      max_iterations: 20
    ownership:
      team: ""
`, name)
	case "workflow":
		body = fmt.Sprintf(`workflows:
  %[1]s:
    version: 0.1.0
    steps:
      - id: start
        action:
          type: agent
          agent: %[1]s-worker
          task: ""
`, name)
	default:
		fmt.Fprintf(os.Stderr, "init: unknown kind %q (want agent or workflow)\n", kind)
		return 1
	}

	path := name + ".yaml"
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(os.Stderr, "init: %s already exists\n", path)
		return 1
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "init: %v\n", err)
		return 1
	}
	fmt.Printf("wrote %s\n", path)
	return 0
}

// runWorkflow posts a synchronous execution to a running engine and
// prints the run result as JSON.
func runWorkflow(args []string) int {
	var name, inputsJSON, tenant string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--inputs", "-inputs":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "run: --inputs requires a value")
				return 1
			}
			inputsJSON = args[i]
		case "--tenant", "-tenant":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "run: --tenant requires a value")
				return 1
			}
			tenant = args[i]
		default:
			if name != "" {
				fmt.Fprintf(os.Stderr, "run: unexpected argument %q\n", args[i])
				return 1
			}
			name = args[i]
		}
	}
	if name == "" {
		fmt.Fprintln(os.Stderr, "run: workflow name required")
		return 1
	}

	payload := map[string]any{}
	if inputsJSON != "" {
		var inputs map[string]any
		if err := json.Unmarshal([]byte(inputsJSON), &inputs); err != nil {
			fmt.Fprintf(os.Stderr, "run: invalid --inputs JSON: %v\n", err)
			return 1
		}
		payload["inputs"] = inputs
	}
	body, err := json.Marshal(payload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "run: %v\n", err)
		return 1
	}

	url := fmt.Sprintf("%s/api/v1/workflows/%s/execute", serverURL(), name)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "run: %v\n", err)
		return 1
	}
	req.Header.Set("Content-Type", "application/json")
	if tenant != "" {
		req.Header.Set("X-Tenant-ID", tenant)
	}

	resp, err := httpClient().Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "run: %v\n", err)
		return 1
	}
	defer resp.Body.Close()

	out, _ := io.ReadAll(resp.Body)
	fmt.Println(string(out))
	if resp.StatusCode >= 400 {
		return 1
	}
	return 0
}

// runTests shells out to the Go toolchain so `praetor test` works in a
// checkout without remembering package paths.
func runTests(args []string) int {
	cmdArgs := append([]string{"test", "./..."}, args...)
	cmd := exec.Command("go", cmdArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode()
		}
		fmt.Fprintf(os.Stderr, "test: %v\n", err)
		return 1
	}
	return 0
}

// runStatus probes /api/v1/status on a running engine.
func runStatus(_ []string) int {
	resp, err := httpClient().Get(serverURL() + "/api/v1/status")
	if err != nil {
		fmt.Fprintf(os.Stderr, "status: %v\n", err)
		return 1
	}
	defer resp.Body.Close()

	out, _ := io.ReadAll(resp.Body)
	fmt.Println(strings.TrimSpace(string(out)))
	if resp.StatusCode != http.StatusOK {
		return 1
	}
	return 0
}
