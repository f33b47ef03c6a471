package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/davidzheglov/longevity-knowledge-base/internal/agent"
	"github.com/davidzheglov/longevity-knowledge-base/internal/artifacts"
	"github.com/davidzheglov/longevity-knowledge-base/internal/config"
	"github.com/davidzheglov/longevity-knowledge-base/internal/llm"
	"github.com/davidzheglov/longevity-knowledge-base/internal/llm/providers/openaicompat"
	"github.com/davidzheglov/longevity-knowledge-base/internal/server"
	"github.com/davidzheglov/longevity-knowledge-base/internal/tools"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "chat":
		runChat(os.Args[2:])
	case "serve":
		runServe(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  longevity-agent chat [--config <agent.yaml>] [--session-id <id>] [-m <message>]")
	fmt.Fprintln(os.Stderr, "  longevity-agent serve [--config <agent.yaml>] [--addr <host:port>]")
}

// deps is the wiring shared by both subcommands.
type deps struct {
	cfg    *config.Config
	client *llm.Client
	tools  *agent.ToolRegistry
	logger *log.Logger
}

func buildDeps(configPath string) (*deps, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger := log.New(os.Stderr, "[longevity-agent] ", log.LstdFlags)

	client := llm.NewClient()
	client.Register(openaicompat.NewAdapter(openaicompat.Config{
		Provider:     cfg.Provider.Name,
		APIKey:       cfg.Provider.APIKey(),
		BaseURL:      cfg.Provider.BaseURL,
		Path:         cfg.Provider.Path,
		Timeout:      cfg.Provider.RequestTimeout(),
		ExtraHeaders: cfg.Provider.Headers,
	}))

	genes, err := tools.LoadGeneIndex(cfg.Data.GeneIndexPath)
	if err != nil {
		logger.Printf("gene index unavailable (%v); normalize_gene will report no matches", err)
		genes = nil
	} else {
		logger.Printf("gene index loaded: %d aliases", genes.Len())
	}

	reg, err := tools.BuildRegistry(&tools.Toolset{Genes: genes})
	if err != nil {
		return nil, fmt.Errorf("build tool registry: %w", err)
	}

	return &deps{cfg: cfg, client: client, tools: reg, logger: logger}, nil
}

func artifactPolicy(cfg *config.Config) *artifacts.Policy {
	if len(cfg.Artifacts.ExcludeGlobs) > 0 {
		return &artifacts.Policy{ExcludeGlobs: cfg.Artifacts.ExcludeGlobs}
	}
	return artifacts.DefaultPolicy()
}

func chatConfig(cfg *config.Config) agent.ChatConfig {
	return agent.ChatConfig{
		Model:               cfg.Agent.Model,
		Provider:            cfg.Provider.Name,
		SystemPrompt:        tools.SystemPrompt,
		MaxIterations:       cfg.Agent.MaxToolIterations,
		LoopDetectionWindow: cfg.Agent.LoopDetectionWindow,
	}
}

func runChat(args []string) {
	var configPath string
	var sessionID string
	var oneShot string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--config requires a value")
				os.Exit(1)
			}
			configPath = args[i]
		case "--session-id":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--session-id requires a value")
				os.Exit(1)
			}
			sessionID = args[i]
		case "-m", "--message":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "-m requires a value")
				os.Exit(1)
			}
			oneShot = args[i]
		default:
			fmt.Fprintf(os.Stderr, "unknown arg: %s\n", args[i])
			os.Exit(1)
		}
	}

	d, err := buildDeps(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	m := artifacts.NewManager(d.cfg.OutputsRoot, artifactPolicy(d.cfg))
	var sess *artifacts.Session
	if sessionID != "" {
		sess, err = m.SwitchSession(filepath.Join(d.cfg.OutputsRoot, sessionID))
	} else {
		sess, err = m.StartSession("", "")
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	cs, err := agent.NewChatSession(d.client, d.tools, sess, chatConfig(d.cfg))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer cs.Close()

	// Surface tool activity on stderr while the model works.
	go func() {
		for ev := range cs.Events() {
			switch ev.Kind {
			case agent.EventToolCallStart:
				d.logger.Printf("tool: %v", ev.Data["tool_name"])
			case agent.EventWarning, agent.EventError, agent.EventLoopDetection:
				d.logger.Printf("%s: %v", ev.Kind, ev.Data)
			}
		}
	}()

	if oneShot != "" {
		answer, err := cs.Chat(context.Background(), oneShot)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(answer)
		if arts := sess.Store.List(""); len(arts) > 0 {
			fmt.Println("\nArtifacts:")
			for _, a := range arts {
				fmt.Printf("  [%s] %s (%s): %s\n", a.ID, a.Label, a.Type, a.Path)
			}
		}
		return
	}

	fmt.Printf("Session directory: %s\n", sess.Dir)
	fmt.Println("Type a message, or 'exit' to quit.")

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Print("\nYou: ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}
		answer, err := cs.Chat(context.Background(), line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		fmt.Printf("\nAssistant: %s\n", answer)
	}
}

func runServe(args []string) {
	var configPath string
	var addr string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--config requires a value")
				os.Exit(1)
			}
			configPath = args[i]
		case "--addr":
			i++
			if i >= len(args) {
				fmt.Fprintln(os.Stderr, "--addr requires a value")
				os.Exit(1)
			}
			addr = args[i]
		default:
			fmt.Fprintf(os.Stderr, "unknown arg: %s\n", args[i])
			os.Exit(1)
		}
	}

	d, err := buildDeps(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if addr == "" {
		addr = d.cfg.Server.Addr
	}

	srv := server.New(server.Config{Addr: addr}, server.SessionDeps{
		Client:      d.client,
		Tools:       d.tools,
		OutputsRoot: d.cfg.OutputsRoot,
		Policy:      artifactPolicy(d.cfg),
		Chat:        chatConfig(d.cfg),
	})
	if err := srv.ListenAndServe(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
