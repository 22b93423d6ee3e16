package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mohitkumar/txflow/agent"
	"github.com/mohitkumar/txflow/config"
	"github.com/mohitkumar/txflow/flows"
	"github.com/mohitkumar/txflow/model"
	"github.com/mohitkumar/txflow/outcome"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type cfg struct {
	config.Config
}
type cli struct {
	cfg cfg
}

func setupFlags(cmd *cobra.Command) error {
	def := config.Default()
	flags := cmd.PersistentFlags()
	flags.String("config-file", "", "Path to config file.")
	flags.String("log-level", def.Log.Level, "log level, one of debug, info, warn, error")
	flags.String("log-encoding", def.Log.Encoding, "log encoding, json or console")
	flags.String("redis-addr", strings.Join(def.RedisConfig.Addrs, ","), "comma separated list of redis host:port")
	flags.String("namespace", def.RedisConfig.Namespace, "namespace used in storage and cache keys")
	flags.Int("http-port", def.HttpPort, "http port for rest endpoints")
	flags.String("storage-impl", string(def.StorageType), "implementation of operation journal and flow storage, memory or redis")
	flags.String("cache-impl", string(def.CacheType), "implementation of the read cache, local or redis")
	flags.String("ledger-impl", string(def.LedgerType), "ledger implementation, flow or simulated")
	flags.String("access-node", def.Ledger.AccessNode, "flow access node")
	flags.String("transport", def.Ledger.Transport, "access node transport, http or grpc")
	flags.String("signer-address", "", "address of the signing account")
	flags.String("signer-key", "", "hex encoded private key of the signing account")
	flags.Uint64("compute-limit", def.Ledger.DefaultComputeLimit, "compute limit used when an operation does not set one")
	flags.Duration("poll-interval", def.Tracker.PollInterval, "status poll interval")
	flags.Duration("track-timeout", def.Tracker.Timeout, "time after which a tracked operation is expired")
	flags.Float64("rate-limit", def.RateLimit.PerSecond, "submissions per second, 0 disables limiting")
	flags.Int("rate-burst", def.RateLimit.Burst, "submission burst")
	flags.String("backend-url", def.Backend.BaseUrl, "base url of the application backend")
	flags.Duration("backend-timeout", def.Backend.Timeout, "backend request timeout")
	flags.Duration("cache-ttl", def.Backend.CacheTTL, "ttl of cached backend reads")
	flags.Bool("reconcile", def.ReconcileAbandoned, "settle operations abandoned by reset flows in the background")
	return viper.BindPFlags(flags)
}

func (c *cli) setupConfig(cmd *cobra.Command, args []string) error {
	var err error

	// a missing .env file is fine
	_ = godotenv.Load()
	viper.SetEnvPrefix("txflow")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	configFile := viper.GetString("config-file")
	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err = viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return err
			}
		}
	}

	c.cfg.Config = config.Default()
	c.cfg.Log.Level = viper.GetString("log-level")
	c.cfg.Log.Encoding = viper.GetString("log-encoding")
	c.cfg.RedisConfig.Addrs = strings.Split(viper.GetString("redis-addr"), ",")
	c.cfg.RedisConfig.Namespace = viper.GetString("namespace")
	c.cfg.HttpPort = viper.GetInt("http-port")
	c.cfg.StorageType = config.StorageType(viper.GetString("storage-impl"))
	c.cfg.CacheType = config.CacheType(viper.GetString("cache-impl"))
	c.cfg.LedgerType = config.LedgerType(viper.GetString("ledger-impl"))
	c.cfg.Ledger.AccessNode = viper.GetString("access-node")
	c.cfg.Ledger.Transport = viper.GetString("transport")
	c.cfg.Ledger.SignerAddress = viper.GetString("signer-address")
	c.cfg.Ledger.SignerKeyHex = viper.GetString("signer-key")
	c.cfg.Ledger.DefaultComputeLimit = viper.GetUint64("compute-limit")
	if contracts := viper.GetStringMapString("contracts"); len(contracts) > 0 {
		c.cfg.Ledger.Contracts = contracts
	}
	c.cfg.Tracker.PollInterval = viper.GetDuration("poll-interval")
	c.cfg.Tracker.Timeout = viper.GetDuration("track-timeout")
	c.cfg.RateLimit.PerSecond = viper.GetFloat64("rate-limit")
	c.cfg.RateLimit.Burst = viper.GetInt("rate-burst")
	c.cfg.Backend.BaseUrl = viper.GetString("backend-url")
	c.cfg.Backend.Timeout = viper.GetDuration("backend-timeout")
	c.cfg.Backend.CacheTTL = viper.GetDuration("cache-ttl")
	c.cfg.ReconcileAbandoned = viper.GetBool("reconcile")
	return nil
}

func (c *cli) run(cmd *cobra.Command, args []string) error {
	var err error
	agent, err := agent.New(c.cfg.Config)
	if err != nil {
		return err
	}
	err = agent.Start()
	if err != nil {
		return err
	}
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	return agent.Shutdown()
}

// runFlow drives one flow in process. Manual steps are continued right away.
func (c *cli) runFlow(ctx context.Context, out io.Writer, name string, input map[string]any) (model.FlowSnapshot, error) {
	a, err := agent.New(c.cfg.Config)
	if err != nil {
		return model.FlowSnapshot{}, err
	}
	defer a.Shutdown()

	svc := a.FlowService()
	snap, err := svc.Create(ctx, name, input)
	if err != nil {
		return snap, err
	}
	if snap, err = svc.Start(ctx, snap.ID); err != nil {
		return snap, err
	}
	for {
		if snap, err = svc.Wait(ctx, snap.ID); err != nil {
			return snap, err
		}
		if snap.Status != model.FLOW_AWAITING_USER {
			break
		}
		fmt.Fprintf(out, "step %q is waiting, continuing\n", snap.StepName)
		if snap, err = svc.Continue(ctx, snap.ID); err != nil {
			return snap, err
		}
	}
	return snap, printJSON(out, snap)
}

func (c *cli) flowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flow <name>",
		Short: "Run a named flow to completion against the configured ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, _ := cmd.Flags().GetString("input")
			input := map[string]any{}
			if raw != "" {
				dec := json.NewDecoder(strings.NewReader(raw))
				dec.UseNumber()
				if err := dec.Decode(&input); err != nil {
					return fmt.Errorf("invalid flow input: %w", err)
				}
			}
			snap, err := c.runFlow(cmd.Context(), cmd.OutOrStdout(), args[0], input)
			if err != nil {
				return err
			}
			if snap.Status != model.FLOW_COMPLETED {
				return fmt.Errorf("flow %s ended %s: %s", snap.ID, snap.Status, snap.Error)
			}
			return nil
		},
	}
	cmd.Flags().String("input", "", "flow input as a json object")
	return cmd
}

func (c *cli) gachaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gacha",
		Short: "Buy a pack and reveal it",
		RunE: func(cmd *cobra.Command, args []string) error {
			address, _ := cmd.Flags().GetString("address")
			snap, err := c.runFlow(cmd.Context(), cmd.OutOrStdout(), flows.FLOW_GACHA, map[string]any{"address": address})
			if err != nil {
				return err
			}
			result, ok := flows.RevealResult(snap)
			if !ok {
				return fmt.Errorf("flow %s ended %s without a revealed item", snap.ID, snap.Status)
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().String("address", "", "account buying the pack")
	_ = cmd.MarkFlagRequired("address")
	return cmd
}

func (c *cli) classifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify [status-json]",
		Short: "Classify an operation status read from the argument or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw []byte
			var err error
			if len(args) == 1 {
				raw = []byte(args[0])
			} else if raw, err = io.ReadAll(cmd.InOrStdin()); err != nil {
				return err
			}
			var status model.OperationStatus
			if err := json.Unmarshal(raw, &status); err != nil {
				return fmt.Errorf("invalid status: %w", err)
			}
			res, terminal := outcome.Classify(status)
			if !terminal {
				fmt.Fprintln(cmd.OutOrStdout(), "not terminal")
				return nil
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
}

func (c *cli) trackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "track <handle>",
		Short: "Follow an operation until it is terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, _ := cmd.Flags().GetString("kind")
			a, err := agent.New(c.cfg.Config)
			if err != nil {
				return err
			}
			defer a.Shutdown()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			stream := a.Tracker().Track(ctx, model.OperationHandle(args[0]), model.OperationKind(kind))
			var last model.OperationStatus
			for status := range stream.C() {
				last = status
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n", status.Phase)
			}
			if err := stream.Err(); err != nil {
				return err
			}
			if res, terminal := outcome.Classify(last); terminal {
				return printJSON(cmd.OutOrStdout(), res)
			}
			return nil
		},
	}
	cmd.Flags().String("kind", "", "operation kind, selects the tracking timeout")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	cli := &cli{}

	cmd := &cobra.Command{
		Use:               "txflow",
		Short:             "Submit, track and orchestrate ledger operations",
		PersistentPreRunE: cli.setupConfig,
		RunE:              cli.run,
	}
	cmd.AddCommand(cli.flowCmd(), cli.gachaCmd(), cli.classifyCmd(), cli.trackCmd())

	if err := setupFlags(cmd); err != nil {
		log.Fatal(err)
	}

	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
