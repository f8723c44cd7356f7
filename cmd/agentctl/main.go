// Command agentctl is a REPL-style entry point that wires the Agent
// Orchestration Engine's collaborators together and drives one chat session
// at a time, grounded on the teacher's cmd/ packages (one cobra root per
// binary, flags bound via PersistentFlags, a long-running Run that loops
// until stdin closes).
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ayushchhipa1509/OCI-COPILOT/ai"
	_ "github.com/ayushchhipa1509/OCI-COPILOT/ai/providers/anthropic"
	_ "github.com/ayushchhipa1509/OCI-COPILOT/ai/providers/gemini"
	_ "github.com/ayushchhipa1509/OCI-COPILOT/ai/providers/openai"
	"github.com/ayushchhipa1509/OCI-COPILOT/cloudops"
	"github.com/ayushchhipa1509/OCI-COPILOT/cloudops/fake"
	"github.com/ayushchhipa1509/OCI-COPILOT/core"
	"github.com/ayushchhipa1509/OCI-COPILOT/memory"
	"github.com/ayushchhipa1509/OCI-COPILOT/orchestration"
	"github.com/ayushchhipa1509/OCI-COPILOT/retrieval"
	"github.com/ayushchhipa1509/OCI-COPILOT/telemetry"
)

var (
	envFile      string
	sessionID    string
	useRetrieval bool
)

func main() {
	root := &cobra.Command{
		Use:   "agentctl",
		Short: "Drive the cloud tenancy assistant's orchestration engine from a terminal",
		RunE:  runREPL,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "path to a .env file of provider credentials")
	root.PersistentFlags().StringVar(&sessionID, "session", "", "session id to resume (a new one is generated if empty)")
	root.PersistentFlags().BoolVar(&useRetrieval, "retrieval", true, "try the retrieval path before planning")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runREPL(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load(envFile)

	cfg := core.DefaultConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		return fmt.Errorf("agentctl: loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("agentctl: invalid config: %w", err)
	}
	logger := cfg.Logger()

	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		telemetryCfg := telemetry.UseProfile(telemetry.ProfileDevelopment)
		telemetryCfg.ServiceName = "agentctl"
		telemetryCfg.Endpoint = endpoint
		if err := telemetry.Initialize(telemetryCfg); err != nil {
			logger.Warn("agentctl: telemetry disabled, failed to initialize", map[string]interface{}{"error": err.Error()})
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := telemetry.Shutdown(shutdownCtx); err != nil {
					logger.Warn("agentctl: telemetry shutdown failed", map[string]interface{}{"error": err.Error()})
				}
			}()
		}
	}

	gateway := buildGateway(logger)
	mgr, err := memory.NewManager(cfg)
	if err != nil {
		return fmt.Errorf("agentctl: building memory manager: %w", err)
	}

	factory := fake.New()
	tenancy := os.Getenv("OCI_TENANCY_OCID")
	if tenancy == "" {
		tenancy = "ocid1.tenancy.oc1..unset"
	}
	cloudCfg, err := cloudops.Build(map[string]interface{}{"tenancy": tenancy})
	if err != nil {
		return fmt.Errorf("agentctl: building cloud config: %w", err)
	}

	engine := orchestration.NewEngine(orchestration.EngineConfig{
		Normalizer:     orchestration.NewNormalizer(gateway, logger),
		RAG:            buildRAGStage(logger),
		IntentAnalyzer: orchestration.NewIntentAnalyzer(gateway, logger),
		Planner:        orchestration.NewPlanner(gateway, logger),
		CodeGen:        orchestration.NewCodeGenerator(),
		Verifier:       orchestration.NewVerifier(factory.AllowedServices()),
		Executor:       orchestration.NewExecutor(factory),
		ErrorHandler:   orchestration.NewErrorHandler(gateway, logger),
		ChatGateway:    gateway,
		CloudConfig:    cloudCfg,
		Logger:         logger,
	})

	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	fmt.Printf("agentctl ready (session %s). Type a request, or \"exit\" to quit.\n", sessionID)
	return chatLoop(cmd.Context(), engine, mgr, cfg)
}

func chatLoop(ctx context.Context, engine *orchestration.Engine, mgr *memory.Manager, cfg *core.Config) error {
	var history []orchestration.ChatTurn
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}

		state := orchestration.NewState(line, sessionID, useRetrieval, history, cfg.Engine.MaxRecursion)
		outcome, err := engine.Run(ctx, *state)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			continue
		}

		if outcome.State.Terminal != nil {
			fmt.Println(outcome.State.Terminal.Summary)
			history = append(history, orchestration.ChatTurn{Role: "user", Text: line})
			history = append(history, orchestration.ChatTurn{Role: "assistant", Text: outcome.State.Terminal.Summary})
			if err := mgr.RecordTurn(ctx, line, outcome.State.Terminal.Summary); err != nil {
				fmt.Fprintln(os.Stderr, "warning: recording turn:", err)
			}
		} else if outcome.Paused {
			fmt.Printf("(paused: %s)\n", outcome.Reason)
		}
	}
}

// providerChain lists every provider alias this CLI tries, in priority
// order; ChainClient skips any alias whose credentials are absent, matching
// the original's llm_manager provider-rotation list built from whichever
// environment variables are present. Bedrock joins this list only in
// binaries built with -tags bedrock (see provider_bedrock.go) since its
// factory pulls in the full AWS SDK.
var providerChain = []string{"openai", "anthropic", "gemini"}

// buildGateway wires one failover ChainClient (grounded on ai/chain_client.go's
// "try each provider until one succeeds" GenerateResponse) into both the fast
// and powerful tiers of a Gateway, so a single agentctl process degrades
// gracefully across however many provider API keys are actually configured.
func buildGateway(logger core.Logger) *ai.Gateway {
	gatewayOpts := []ai.GatewayOption{ai.WithGatewayLogger(logger)}
	if t := telemetry.GetTelemetryProvider(); t != nil {
		gatewayOpts = append(gatewayOpts, ai.WithGatewayTelemetry(t))
	}
	gateway := ai.NewGateway(gatewayOpts...)

	chain, err := ai.NewChainClient(
		ai.WithProviderChain(providerChain...),
		ai.WithChainLogger(logger),
	)
	if err != nil {
		logger.Warn("agentctl: no AI providers configured, LM calls will return the gateway's error sentinel", map[string]interface{}{"error": err.Error()})
		return gateway
	}
	gateway.AddProvider("chain", chain, chain)
	return gateway
}

// buildRAGStage wires the retrieval path only when both an embedding and a
// vector-store endpoint are configured; otherwise every turn routes straight
// to the Planner, matching rag_retriever_node's "retrieval not configured"
// fallback.
func buildRAGStage(logger core.Logger) *orchestration.RAGStage {
	embedURL := os.Getenv("EMBEDDING_SERVICE_URL")
	vectorURL := os.Getenv("VECTOR_STORE_URL")
	if embedURL == "" || vectorURL == "" {
		return orchestration.NewRAGStage(nil)
	}
	embedder := retrieval.NewHTTPEmbedder(embedURL, os.Getenv("EMBEDDING_SERVICE_API_KEY"), logger)
	store := retrieval.NewHTTPVectorStore(vectorURL, os.Getenv("VECTOR_STORE_API_KEY"), logger)
	retriever := retrieval.NewRetriever(nil, embedder, store, logger, 5)
	return orchestration.NewRAGStage(retriever)
}
