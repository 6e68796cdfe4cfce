// Package main provides the PathQ CLI entry point.
package main

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/orneryd/pathq/pkg/config"
	"github.com/orneryd/pathq/pkg/docstore"
	"github.com/orneryd/pathq/pkg/expr"
	"github.com/orneryd/pathq/pkg/logging"
	"github.com/orneryd/pathq/pkg/pathq"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pathq",
		Short: "PathQ - Cached Path Expression Engine for XML Documents",
		Long: `PathQ evaluates path expressions against XML documents through a
process-wide cache of compiled expression pools.

Features:
  • Compile-once evaluation with pooled instances
  • Named LRU caches with per-cache capacity
  • Namespace-aware path expressions with variables and functions
  • Value templates ("Hello {$name}")
  • Persistent document store with validity stamps`,
	}
	rootCmd.PersistentFlags().String("config", "", "Path to YAML config file")

	// Version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("PathQ v%s (%s)\n", version, commit)
		},
	})

	// Eval command
	evalCmd := &cobra.Command{
		Use:   "eval [expression]",
		Short: "Evaluate a path expression",
		Long:  "Evaluate a path expression against an XML document from a file or the document store",
		Args:  cobra.ExactArgs(1),
		RunE:  runEval,
	}
	evalCmd.Flags().String("doc", "", "XML document file to evaluate against")
	evalCmd.Flags().String("id", "", "Document ID in the document store")
	evalCmd.Flags().StringArray("ns", nil, "Namespace binding prefix=uri (repeatable)")
	evalCmd.Flags().StringArray("var", nil, "Variable binding name=value (repeatable)")
	evalCmd.Flags().String("cache", "", "Cache name (default: main)")
	evalCmd.Flags().Bool("template", false, "Evaluate as a value template")
	evalCmd.Flags().Bool("as-string", false, "Print the string value of the first result")
	evalCmd.Flags().Bool("single", false, "Print only the first result item")
	rootCmd.AddCommand(evalCmd)

	// Doc command (document store operations)
	docCmd := &cobra.Command{
		Use:   "doc",
		Short: "Document store operations",
	}
	docCmd.AddCommand(&cobra.Command{
		Use:   "put [id] [file]",
		Short: "Store an XML document",
		Args:  cobra.ExactArgs(2),
		RunE:  runDocPut,
	})
	docCmd.AddCommand(&cobra.Command{
		Use:   "get [id]",
		Short: "Print a stored document",
		Args:  cobra.ExactArgs(1),
		RunE:  runDocGet,
	})
	docCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored document IDs",
		Args:  cobra.NoArgs,
		RunE:  runDocList,
	})
	docCmd.AddCommand(&cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a stored document",
		Args:  cobra.ExactArgs(1),
		RunE:  runDocDelete,
	})
	rootCmd.AddCommand(docCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path, _ = cmd.InheritedFlags().GetString("config")
	}
	if path == "" {
		cfg := config.LoadFromEnv()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return config.Load(path)
}

func setupLogging(cfg *config.Config) {
	logging.Setup(cfg.Logging.Level, cfg.Logging.Pretty, os.Stderr)
}

func openStore(cfg *config.Config) (*docstore.Store, error) {
	return docstore.OpenWithOptions(docstore.Options{
		DataDir:    cfg.Store.DataDir,
		InMemory:   cfg.Store.InMemory,
		SyncWrites: cfg.Store.SyncWrites,
	})
}

func runEval(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	setupLogging(cfg)

	docFile, _ := cmd.Flags().GetString("doc")
	docID, _ := cmd.Flags().GetString("id")
	nsFlags, _ := cmd.Flags().GetStringArray("ns")
	varFlags, _ := cmd.Flags().GetStringArray("var")
	cacheName, _ := cmd.Flags().GetString("cache")
	template, _ := cmd.Flags().GetBool("template")
	asString, _ := cmd.Flags().GetBool("as-string")
	single, _ := cmd.Flags().GetBool("single")

	var body []byte
	var stamp int64
	switch {
	case docFile != "":
		body, err = os.ReadFile(docFile)
		if err != nil {
			return err
		}
	case docID != "":
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		body, stamp, err = store.Get(docID)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("either --doc or --id is required")
	}

	root, err := expr.ParseXML(bytes.NewReader(body))
	if err != nil {
		return err
	}

	namespaces, err := parsePairs(nsFlags, "--ns")
	if err != nil {
		return err
	}
	varPairs, err := parsePairs(varFlags, "--var")
	if err != nil {
		return err
	}
	names := make([]string, 0, len(varPairs))
	values := make(map[string]any, len(varPairs))
	for name, raw := range varPairs {
		names = append(names, name)
		values[name] = coerceValue(raw)
	}

	pq := pathq.New(pathq.Options{
		DefaultCacheCapacity: cfg.Cache.DefaultCapacity,
		CacheCapacities:      cfg.Cache.Capacities,
	})
	defer pq.Close()

	q := pathq.Query{
		Cache:      cacheName,
		Text:       args[0],
		Namespaces: namespaces,
		Variables:  names,
		Stamp:      stamp,
	}
	b := pathq.Binding{
		Context:   expr.Sequence{root},
		Variables: values,
	}

	switch {
	case template:
		out, err := pq.EvaluateTemplate(q, b)
		if err != nil {
			return err
		}
		fmt.Println(out)
	case asString:
		out, err := pq.EvaluateString(q, b)
		if err != nil {
			return err
		}
		fmt.Println(out)
	case single:
		item, err := pq.EvaluateSingle(q, b)
		if err != nil {
			return err
		}
		if item != nil {
			fmt.Println(expr.ItemString(item))
		}
	default:
		result, err := pq.Evaluate(q, b)
		if err != nil {
			return err
		}
		for _, item := range result {
			fmt.Println(expr.ItemString(item))
		}
	}
	return nil
}

func runDocPut(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	setupLogging(cfg)

	body, err := os.ReadFile(args[1])
	if err != nil {
		return err
	}
	// Reject documents that won't parse before they reach the store.
	if _, err := expr.ParseXML(bytes.NewReader(body)); err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	stamp, err := store.Put(args[0], body)
	if err != nil {
		return err
	}
	fmt.Printf("stored %s (stamp %d)\n", args[0], stamp)
	return nil
}

func runDocGet(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	setupLogging(cfg)

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	body, _, err := store.Get(args[0])
	if err != nil {
		return err
	}
	os.Stdout.Write(body)
	return nil
}

func runDocList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	setupLogging(cfg)

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ids, err := store.List()
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	return nil
}

func runDocDelete(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	setupLogging(cfg)

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Delete(args[0]); err != nil {
		return err
	}
	fmt.Printf("deleted %s\n", args[0])
	return nil
}

// parsePairs parses repeated "key=value" flags.
func parsePairs(flags []string, flagName string) (map[string]string, error) {
	if len(flags) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(flags))
	for _, raw := range flags {
		key, value, ok := strings.Cut(raw, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("%s %q: expected key=value", flagName, raw)
		}
		out[key] = value
	}
	return out, nil
}

// coerceValue binds numeric-looking flag values as numbers.
func coerceValue(raw string) any {
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}
