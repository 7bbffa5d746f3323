package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"autoinc/internal/core/entity"
	"autoinc/internal/domain/counter"
	"autoinc/internal/infrastructure/http/v1/dto"
	"autoinc/internal/metadata"
	"autoinc/pkg/logger"
)

func newKeyCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "key <model> <counter> [field=value ...]",
		Short: "Print the counter id a document with the given fields uses",
		Long: "Values that parse as JSON (numbers, true, false, null, quoted strings) keep their type; " +
			"anything else is taken as a plain string.",
		Example: `  seqctl key composed inhabitant country=France city=Paris`,
		Args:    cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.Config()
			if err != nil {
				return err
			}
			models, err := metadata.LoadOrDefault(cfg.ModelsFile)
			if err != nil {
				return err
			}

			def, ok := models.Get(args[0])
			if !ok {
				return fmt.Errorf("unknown model %q", args[0])
			}

			// Key derivation reads documents only; no store is needed.
			counters := counter.NewRegistry(counter.NewAllocator(nil, counter.WithLogger(logger.Nop())))
			if err := counters.RegisterModels(def); err != nil {
				return err
			}
			binder, err := counters.Lookup(def.Name, args[1])
			if err != nil {
				return err
			}

			values, err := parseAssignments(args[2:])
			if err != nil {
				return err
			}
			doc, err := entity.NewMapDocument(def.Schema(), values)
			if err != nil {
				return err
			}
			key, err := binder.Key(doc)
			if err != nil {
				return err
			}

			return printJSON(cmd, dto.KeyResponse{
				Model:     def.Name,
				Counter:   binder.CounterName(),
				CounterID: key,
			})
		},
	}
}

// parseAssignments turns field=value arguments into document values.
func parseAssignments(args []string) (map[string]any, error) {
	values := make(map[string]any, len(args))
	for _, arg := range args {
		name, raw, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid field assignment %q, want field=value", arg)
		}
		values[name] = parseValue(raw)
	}
	return values, nil
}

func parseValue(raw string) any {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return raw
	}
	switch v.(type) {
	case map[string]any, []any:
		return raw
	}
	return v
}
