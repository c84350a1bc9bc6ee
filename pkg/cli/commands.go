package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/Azure/azure-sdk-for-go/sdk/data/azcosmos"
	jsoniter "github.com/json-iterator/go"
	"github.com/nimburion/cosmoskit/pkg/health"
	"github.com/nimburion/cosmoskit/pkg/repository/document"
	"github.com/nimburion/cosmoskit/pkg/store/cosmosdb"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func (a *app) bootstrapCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap",
		Short: "Create the database and every configured container when missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *session) error {
				adapter, err := s.adapter()
				if err != nil {
					return err
				}
				statuses, ensureErr := adapter.EnsureContainers(ctx, s.cfg.Cosmos.Containers)

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintf(w, "DATABASE\t%s\t\n", adapter.DatabaseID())
				fmt.Fprintln(w, "CONTAINER\tPARTITION KEY\tSTATUS")
				for _, st := range statuses {
					fmt.Fprintf(w, "%s\t%s\t%s\n", st.Name, st.PartitionKeyPath, st.Status)
				}
				if err := w.Flush(); err != nil {
					return err
				}
				return ensureErr
			})
		},
	}
}

func (a *app) healthcheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "healthcheck",
		Short: "Check connectivity to the Cosmos DB database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *session) error {
				registry := health.NewRegistry()
				if adapter, err := s.adapter(); err != nil {
					registry.Register(health.NewCustomChecker("cosmosdb", func(context.Context) (health.Status, string, error) {
						return health.StatusUnhealthy, "connection failed", err
					}))
				} else {
					registry.Register(health.NewDatabaseChecker("cosmosdb", adapter, adapter.Endpoint(), adapter.DatabaseID()))
				}

				result := registry.Check(ctx)
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				if err := enc.Encode(result); err != nil {
					return err
				}
				if err := enc.Close(); err != nil {
					return err
				}
				if !result.IsHealthy() {
					return fmt.Errorf("health check failed: %s", result.Status)
				}
				return nil
			})
		},
	}
}

func (a *app) queryCommand() *cobra.Command {
	var (
		container    string
		partitionKey string
		params       []string
	)
	cmd := &cobra.Command{
		Use:   "query <sql>",
		Short: "Run a SQL query and print each result as a JSON line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := buildQuery(args[0], params)
			if err != nil {
				return err
			}
			return a.withSession(cmd, func(ctx context.Context, s *session) error {
				docs, err := s.documents()
				if err != nil {
					return err
				}
				results, err := docs.QueryPartition(ctx, container, q, partitionKey)
				if err != nil {
					return err
				}
				return writeLines(cmd.OutOrStdout(), results)
			})
		},
	}
	cmd.Flags().StringVar(&container, "container", "", "container name")
	cmd.Flags().StringVar(&partitionKey, "partition-key", "", "numeric partition key (empty queries every partition)")
	cmd.Flags().StringArrayVar(&params, "param", nil, "query parameter as name=value (repeatable)")
	_ = cmd.MarkFlagRequired("container")
	return cmd
}

func (a *app) getCommand() *cobra.Command {
	var container, partitionKey string
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Read one document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *session) error {
				docs, err := s.documents()
				if err != nil {
					return err
				}
				doc, err := docs.Get(ctx, container, args[0], partitionKeyArg(partitionKey))
				if err != nil {
					return err
				}
				if doc == nil {
					return fmt.Errorf("document %q not found in %s", args[0], container)
				}
				return writeLines(cmd.OutOrStdout(), []json.RawMessage{*doc})
			})
		},
	}
	cmd.Flags().StringVar(&container, "container", "", "container name")
	cmd.Flags().StringVar(&partitionKey, "partition-key", "", "partition key value")
	_ = cmd.MarkFlagRequired("container")
	_ = cmd.MarkFlagRequired("partition-key")
	return cmd
}

func (a *app) deleteCommand() *cobra.Command {
	var container, partitionKey string
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one document; failures are logged, not returned",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withSession(cmd, func(ctx context.Context, s *session) error {
				docs, err := s.documents()
				if err != nil {
					return err
				}
				if err := docs.Delete(ctx, container, args[0], partitionKeyArg(partitionKey)); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "delete requested: %s/%s\n", container, args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&container, "container", "", "container name")
	cmd.Flags().StringVar(&partitionKey, "partition-key", "", "partition key value")
	_ = cmd.MarkFlagRequired("container")
	_ = cmd.MarkFlagRequired("partition-key")
	return cmd
}

func (a *app) putCommand() *cobra.Command {
	var container, partitionKey string
	cmd := &cobra.Command{
		Use:   "put <file|->",
		Short: "Upsert a JSON document, assigning a new id when it has none",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			body, id, err := ensureID(raw)
			if err != nil {
				return err
			}
			return a.withSession(cmd, func(ctx context.Context, s *session) error {
				docs, err := s.documents()
				if err != nil {
					return err
				}
				if partitionKey == "" {
					err = docs.Upsert(ctx, container, body)
				} else {
					err = docs.UpsertWithPartitionKey(ctx, container, body, partitionKeyArg(partitionKey))
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&container, "container", "", "container name")
	cmd.Flags().StringVar(&partitionKey, "partition-key", "", "partition key value (read from the document when empty)")
	_ = cmd.MarkFlagRequired("container")
	return cmd
}

func (a *app) configCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
	}
	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, secrets, _, err := a.loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			rendered, err := cfg.Redacted(secrets).YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(rendered)
			return err
		},
	})
	return configCmd
}

// partitionKeyArg reads a command-line partition key: numbers become numeric keys,
// anything else a string key, and an empty value selects every partition.
func partitionKeyArg(raw string) azcosmos.PartitionKey {
	if pk, err := cosmosdb.NumericPartitionKey(raw); err == nil {
		return pk
	}
	return cosmosdb.StringPartitionKey(raw)
}

// buildQuery attaches name=value parameters to text. Values that parse as JSON keep
// their JSON type; anything else is sent as a string.
func buildQuery(text string, params []string) (document.Query, error) {
	q := document.NewQuery(text)
	for _, param := range params {
		name, raw, ok := strings.Cut(param, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return document.Query{}, fmt.Errorf("invalid query parameter %q: expected name=value", param)
		}
		if !strings.HasPrefix(name, "@") {
			name = "@" + name
		}
		var value any = raw
		var decoded any
		if err := jsoniter.UnmarshalFromString(raw, &decoded); err == nil {
			value = decoded
		}
		q = q.WithParameter(name, value)
	}
	return q, nil
}

// ensureID returns doc with a generated id when it has none, and the id in use.
func ensureID(doc []byte) (json.RawMessage, string, error) {
	var fields map[string]json.RawMessage
	if err := jsoniter.Unmarshal(doc, &fields); err != nil {
		return nil, "", fmt.Errorf("document must be a JSON object: %w", err)
	}
	if fields == nil {
		return nil, "", errors.New("document must be a JSON object")
	}

	if raw, ok := fields["id"]; ok {
		if id := jsoniter.Get(raw).ToString(); id != "" {
			return json.RawMessage(doc), id, nil
		}
	}

	id := document.NewID()
	encodedID, err := jsoniter.Marshal(id)
	if err != nil {
		return nil, "", err
	}
	fields["id"] = encodedID
	out, err := jsoniter.Marshal(fields)
	if err != nil {
		return nil, "", fmt.Errorf("encode document: %w", err)
	}
	return out, id, nil
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return data, nil
}

func writeLines(w io.Writer, docs []json.RawMessage) error {
	for _, doc := range docs {
		if _, err := fmt.Fprintf(w, "%s\n", doc); err != nil {
			return err
		}
	}
	return nil
}
