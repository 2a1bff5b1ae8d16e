package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/fatih/color"
	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lumen-lang/lumen/internal/compile"
	"github.com/lumen-lang/lumen/internal/config"
	"github.com/lumen-lang/lumen/internal/lir"
	"github.com/lumen-lang/lumen/internal/process"
	"github.com/lumen-lang/lumen/internal/scheduler"
	"github.com/lumen-lang/lumen/internal/tool"
	"github.com/lumen-lang/lumen/internal/tool/providers/ws"
	"github.com/lumen-lang/lumen/internal/trace"
	"github.com/lumen-lang/lumen/internal/vm"
	"github.com/lumen-lang/lumen/internal/vmvalue"
)

var (
	flagEntry     string
	flagTraceAddr string
)

var runCmd = &cobra.Command{
	Use:   "run <file.lm|file.lm.md>",
	Short: "Compile and execute a Lumen document",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&flagEntry, "entry", "", "cell to execute (default: main, then the script body)")
	runCmd.Flags().StringVar(&flagTraceAddr, "trace-addr", "", "serve tool-call trace events over HTTP at this address")
}

func runRun(cmd *cobra.Command, args []string) error {
	unit, diags := compileInput(args[0])
	printDiagnostics(diags)
	if unit == nil {
		return fmt.Errorf("%d error(s)", len(diags.Errors()))
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := newLogger()

	entry := flagEntry
	if entry == "" {
		name, ok := compile.EntryCell(unit.Module)
		if !ok {
			return fmt.Errorf("module has no main cell and no script body")
		}
		entry = name
	}

	ctx := context.Background()
	sched := scheduler.New(ctx,
		scheduler.WithWorkers(cfg.Runtime.Workers),
		scheduler.WithDeterministic(cfg.Runtime.Deterministic || unit.Deterministic),
		scheduler.WithLogger(log),
	)
	defer sched.Shutdown()

	sink := trace.NewSink(1024)
	registry := buildRegistry(cfg, log)

	dispatcher := tool.NewDispatcher(
		registry,
		vm.ModuleGrants(unit.Module),
		providerBindings(cfg, unit.Module),
		sink,
		log,
	)

	machine := vm.New(unit.Module, sched, dispatcher, sink,
		vm.WithMaxFrames(cfg.Runtime.MaxFrames),
		vm.WithLogger(log),
	)

	// Memory processes come up after the VM exists so machine/pipeline
	// step cells can run; their KV surface registers as tool providers.
	procs, err := process.Instantiate(unit.Module.Processes, process.Deps{
		Runner:    machine,
		Log:       log,
		OpenStore: storeOpener(cfg),
	})
	if err != nil {
		return err
	}
	defer procs.Close()
	for _, mem := range procs.Memories() {
		registry.Register(process.NewMemoryProvider(mem))
	}

	if flagTraceAddr != "" {
		router := chi.NewRouter()
		router.Mount("/trace", trace.Mount(sink))
		go func() {
			if err := http.ListenAndServe(flagTraceAddr, router); err != nil {
				log.Warn("trace server stopped", zap.Error(err))
			}
		}()
	}

	result, err := machine.Run(ctx, entry, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", color.RedString("error"), err)
		return fmt.Errorf("execution failed")
	}
	if result.Kind != vmvalue.KNull {
		fmt.Println(result.String())
	}
	return nil
}

// buildRegistry registers configured providers. Websocket endpoints are
// the one concrete provider family this repo ships (spec.md §1 leaves
// HTTP/FS/LLM/MCP bodies external); a provider whose config table carries
// an endpoint becomes a ws.Provider under its configured name.
func buildRegistry(cfg *config.Config, log *zap.Logger) *tool.Registry {
	registry := tool.NewRegistry()
	for name, conf := range cfg.ProviderConf {
		endpoint, ok := conf["endpoint"].(string)
		if !ok || endpoint == "" {
			continue
		}
		registry.Register(ws.New(name, endpoint))
		log.Debug("registered provider", zap.String("name", name), zap.String("endpoint", endpoint))
	}
	return registry
}

// providerBindings resolves tool alias -> provider name: lumen.toml wins,
// then the module's own `use tool` declarations.
func providerBindings(cfg *config.Config, mod *lir.LirModule) tool.ProviderBinding {
	return func(alias string) (string, bool) {
		if name, ok := cfg.ProviderFor(alias); ok {
			return name, true
		}
		for _, t := range mod.Tools {
			if t.Alias == alias && t.Provider != "" {
				return t.Provider, true
			}
		}
		return "", false
	}
}

// storeOpener picks each memory process's backend from its own config:
// backend = "sqlite" | "postgres" | "redis", falling back to the
// in-process map store.
func storeOpener(cfg *config.Config) func(meta lir.ProcessMeta) (process.Store, error) {
	return func(meta lir.ProcessMeta) (process.Store, error) {
		switch meta.Config["backend"] {
		case "", "mem":
			return process.NewMemStore(), nil
		case "sqlite":
			path := meta.Config["path"]
			if path == "" {
				path = meta.Name + ".db"
			}
			return process.NewSQLiteStore(path, "lumen_memory_"+meta.Name)
		case "postgres":
			dsn := os.Getenv(meta.Config["dsn_env"])
			if dsn == "" {
				return nil, fmt.Errorf("memory %s: postgres backend needs dsn_env naming an environment variable", meta.Name)
			}
			return process.NewPostgresStore(dsn, "lumen_memory_"+meta.Name)
		case "redis":
			addr := meta.Config["addr"]
			if addr == "" {
				addr = "localhost:6379"
			}
			password := os.Getenv(meta.Config["password_env"])
			return process.NewRedisStore(addr, password, 0, meta.Name)
		default:
			return nil, fmt.Errorf("memory %s: unknown backend %q", meta.Name, meta.Config["backend"])
		}
	}
}
