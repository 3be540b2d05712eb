package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/frahmantamala/secure-payments/internal/parameters"
	"github.com/spf13/cobra"
)

var paramsCmd = &cobra.Command{
	Use:   "params",
	Short: "Read or edit runtime payment parameters",
	Long:  `Read or edit MASK_PATTERN and MAX_AMOUNT in the redis parameter store. Running servers pick up edits within the cache TTL.`,
}

var paramsGetCmd = &cobra.Command{
	Use:   "get [MASK_PATTERN|MAX_AMOUNT]",
	Short: "Print a parameter",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withParamStore(func(ctx context.Context, source *parameters.RedisSource, name string) error {
			value, err := source.Get(ctx, name)
			if err != nil {
				return err
			}
			fmt.Printf("%s=%s\n", name, value)
			return nil
		}, args[0])
	},
}

var paramsSetCmd = &cobra.Command{
	Use:   "set [MASK_PATTERN|MAX_AMOUNT] [value]",
	Short: "Write a parameter",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := strings.ToUpper(args[0]), args[1]
		if err := validateParam(key, value); err != nil {
			return err
		}
		return withParamStore(func(ctx context.Context, source *parameters.RedisSource, name string) error {
			if err := source.Set(ctx, name, value); err != nil {
				return err
			}
			fmt.Printf("%s=%s\n", name, value)
			return nil
		}, key)
	},
}

func validateParam(key, value string) error {
	switch key {
	case "MASK_PATTERN":
		if !strings.ContainsAny(value, "*#") {
			return fmt.Errorf("mask pattern %q has no * or # placeholders", value)
		}
	case "MAX_AMOUNT":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil || n <= 0 {
			return fmt.Errorf("max amount %q must be a positive integer", value)
		}
	}
	return nil
}

func withParamStore(fn func(ctx context.Context, source *parameters.RedisSource, name string) error, key string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.Redis.Addr == "" {
		return fmt.Errorf("params commands need redis.addr to be configured")
	}

	var name string
	switch strings.ToUpper(key) {
	case "MASK_PATTERN":
		name = cfg.Parameters.MaskPatternName()
	case "MAX_AMOUNT":
		name = cfg.Parameters.MaxAmountName()
	default:
		return fmt.Errorf("unknown parameter %q", key)
	}

	client, err := initRedis(cfg.Redis)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "redis close: %v\n", err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return fn(ctx, parameters.NewRedisSource(client), name)
}

func init() {
	paramsCmd.AddCommand(paramsGetCmd)
	paramsCmd.AddCommand(paramsSetCmd)

	rootCmd.AddCommand(paramsCmd)
}
