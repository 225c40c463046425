// Command diagnose checks the assistant's dependencies from the command
// line: the Ollama endpoint, the configured model, a component self-test,
// and optionally a log file to scan.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	stdlog "log"
	"os"
	"time"

	appconfig "github.com/lewisedginton/log_analysis_assistant/internal/config"
	"github.com/lewisedginton/log_analysis_assistant/internal/conversation"
	"github.com/lewisedginton/log_analysis_assistant/internal/knowledge"
	"github.com/lewisedginton/log_analysis_assistant/internal/logscan"
	"github.com/lewisedginton/log_analysis_assistant/internal/ollama"
	"github.com/lewisedginton/log_analysis_assistant/internal/retriever"
	"github.com/lewisedginton/log_analysis_assistant/internal/storage"
	"github.com/lewisedginton/log_analysis_assistant/pkg/logger"
)

type selfTest struct {
	KnowledgeOK     bool  `json:"knowledge_ok"`
	KnowledgeMillis int64 `json:"knowledge_millis"`
	MemoryOK        bool  `json:"memory_ok"`
}

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to the YAML config file")
	logFile := flag.String("file", "", "optional log file to scan")
	asJSON := flag.Bool("json", false, "emit results as JSON")
	flag.Parse()

	cfg, err := appconfig.Load(*configPath)
	if err != nil {
		stdlog.Fatalf("Failed to load configuration: %v", err)
	}

	log := logger.NewLogger(logger.Config{
		Level:   logger.ErrorLevel,
		Service: "diagnose",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	gateway := ollama.NewClient(ollama.Options{
		Host:   cfg.Ollama.Host,
		Model:  cfg.Ollama.Model,
		Logger: log,
	})

	ok, detail := gateway.CheckConnection(ctx)

	result := map[string]any{
		"endpoint":        cfg.Ollama.Host,
		"model":           cfg.Ollama.Model,
		"model_reachable": ok,
		"detail":          detail,
		"self_test":       runSelfTest(ctx, log),
	}

	if *logFile != "" {
		content, err := os.ReadFile(*logFile) //nolint:gosec // G304: path comes from the operator
		if err != nil {
			stdlog.Fatalf("Failed to read log file: %v", err)
		}
		result["scan"] = logscan.Scan(string(content))
	}

	if *asJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(result); err != nil {
			stdlog.Fatalf("Failed to encode result: %v", err)
		}
	} else {
		printText(result)
	}

	if !ok {
		os.Exit(1)
	}
}

// runSelfTest exercises the retrieval and memory components against a
// throwaway store seeded with the default knowledge base.
func runSelfTest(ctx context.Context, log logger.Logger) selfTest {
	var st selfTest

	dir, err := os.MkdirTemp("", "diagnose-*")
	if err != nil {
		return st
	}
	defer os.RemoveAll(dir)

	provider := storage.NewLocalProvider(dir)
	store := knowledge.NewStore(ctx, knowledge.Options{Provider: provider, Logger: log})

	r := retriever.New(retriever.Options{
		Init: func(ctx context.Context) (retriever.Searcher, error) {
			return store, nil
		},
		Logger: log,
	})
	start := time.Now()
	snippet := r.Retrieve(ctx, "connection refused", time.Second)
	st.KnowledgeMillis = time.Since(start).Milliseconds()
	st.KnowledgeOK = snippet != ""

	memory := conversation.NewMemory(provider, log, 2)
	memory.Append(ctx, "sess-00000000-0000-0000-0000-000000000000", "ping", "pong")
	memory.Flush()
	st.MemoryOK = len(memory.RecentWindow(ctx, "sess-00000000-0000-0000-0000-000000000000")) == 2

	return st
}

func printText(result map[string]any) {
	fmt.Printf("Endpoint:  %s\n", result["endpoint"])
	fmt.Printf("Model:     %s\n", result["model"])
	if result["model_reachable"].(bool) {
		fmt.Println("Status:    OK")
	} else {
		fmt.Println("Status:    UNAVAILABLE")
	}
	fmt.Printf("Detail:    %s\n", result["detail"])

	if st, ok := result["self_test"].(selfTest); ok {
		fmt.Printf("Knowledge: ok=%v (%dms)\n", st.KnowledgeOK, st.KnowledgeMillis)
		fmt.Printf("Memory:    ok=%v\n", st.MemoryOK)
	}

	if scan, ok := result["scan"].(logscan.Report); ok {
		fmt.Println()
		fmt.Println(scan.Summary)
		for _, rec := range scan.Recommendations {
			fmt.Printf("  - %s\n", rec)
		}
	}
}
