package main

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"oebrowse/errors"
	"oebrowse/record"
	"oebrowse/transport"
)

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := strconv.ParseInt(a, 10, 64)
		if err != nil || id <= 0 {
			return nil, errors.Precondition("invalid id %q", a)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func newDatabasesCmd(p *cliParams) *cobra.Command {
	return &cobra.Command{
		Use:   "databases",
		Short: "List databases on the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := connect(cmd.Context(), p)
			if err != nil {
				return err
			}
			defer s.close()
			names, err := s.client.ListDatabases(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newFieldsCmd(p *cliParams) *cobra.Command {
	return &cobra.Command{
		Use:   "fields <model>",
		Short: "Show the fields of a model",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(p, func(ctx context.Context, s *session, cmd *cobra.Command, args []string) error {
			m, err := s.model(ctx, args[0])
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "FIELD\tTYPE\tRELATION\tLABEL")
			for _, name := range m.Schema().Names() {
				f, _ := m.Schema().Field(name)
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", f.Name, f.Type, f.Relation, f.Label)
			}
			return w.Flush()
		}),
	}
}

func newReadCmd(p *cliParams) *cobra.Command {
	var fields []string
	cmd := &cobra.Command{
		Use:   "read <model> <id>...",
		Short: "Read records as JSON",
		Args:  cobra.MinimumNArgs(2),
		RunE: withSession(p, func(ctx context.Context, s *session, cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args[1:])
			if err != nil {
				return err
			}
			m, err := s.model(ctx, args[0])
			if err != nil {
				return err
			}
			records, err := m.BrowseMany(ctx, ids)
			if err != nil {
				return err
			}
			out := make([]map[string]any, 0, len(records))
			for _, r := range records {
				row, err := renderRecord(ctx, r, fields)
				if err != nil {
					return err
				}
				out = append(out, row)
			}
			return printJSON(cmd.OutOrStdout(), out)
		}),
	}
	cmd.Flags().StringSliceVarP(&fields, "fields", "f", nil, "fields to show (default all)")
	return cmd
}

func newSearchCmd(p *cliParams) *cobra.Command {
	var (
		domain string
		offset int
		limit  int
		order  string
	)
	cmd := &cobra.Command{
		Use:   "search <model>",
		Short: "Search record ids",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(p, func(ctx context.Context, s *session, cmd *cobra.Command, args []string) error {
			condition, err := parseDomain(domain)
			if err != nil {
				return err
			}
			m, err := s.model(ctx, args[0])
			if err != nil {
				return err
			}
			ids, err := m.Proxy().Search(ctx, condition, offset, limit, order)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), ids)
		}),
	}
	cmd.Flags().StringVar(&domain, "domain", "", `search domain as JSON, e.g. '[["name","ilike","acme"]]'`)
	cmd.Flags().IntVar(&offset, "offset", 0, "")
	cmd.Flags().IntVar(&limit, "limit", 0, "0 means no limit")
	cmd.Flags().StringVar(&order, "order", "", "e.g. 'name desc'")
	return cmd
}

func newNameSearchCmd(p *cliParams) *cobra.Command {
	var (
		operator string
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "name-search <model> [name]",
		Short: "Search records by display name",
		Args:  cobra.RangeArgs(1, 2),
		RunE: withSession(p, func(ctx context.Context, s *session, cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) > 1 {
				name = args[1]
			}
			m, err := s.model(ctx, args[0])
			if err != nil {
				return err
			}
			pairs, err := m.Proxy().NameSearch(ctx, name, nil, operator, limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, pair := range pairs {
				fmt.Fprintf(w, "%d\t%s\n", pair.ID, pair.Name)
			}
			return w.Flush()
		}),
	}
	cmd.Flags().StringVar(&operator, "operator", "ilike", "")
	cmd.Flags().IntVar(&limit, "limit", 80, "")
	return cmd
}

func newCreateCmd(p *cliParams) *cobra.Command {
	var (
		sets        []string
		useDefaults bool
	)
	cmd := &cobra.Command{
		Use:   "create <model>",
		Short: "Create a record and print its id",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(p, func(ctx context.Context, s *session, cmd *cobra.Command, args []string) error {
			values, err := parseAssignments(sets)
			if err != nil {
				return err
			}
			m, err := s.model(ctx, args[0])
			if err != nil {
				return err
			}
			var draft *record.Record
			if useDefaults {
				if draft, err = m.Default(ctx); err != nil {
					return err
				}
				for _, name := range sortedKeys(values) {
					if err := draft.Set(name, values[name]); err != nil {
						return err
					}
				}
			} else if draft, err = m.New(values); err != nil {
				return err
			}
			if err := draft.Save(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), draft.ID())
			return nil
		}),
	}
	cmd.Flags().StringArrayVarP(&sets, "set", "s", nil, "field=value, value parsed as JSON when possible")
	cmd.Flags().BoolVar(&useDefaults, "defaults", false, "start from the server defaults")
	return cmd
}

func newWriteCmd(p *cliParams) *cobra.Command {
	var sets []string
	cmd := &cobra.Command{
		Use:   "write <model> <id>",
		Short: "Update fields of a record",
		Args:  cobra.ExactArgs(2),
		RunE: withSession(p, func(ctx context.Context, s *session, cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args[1:])
			if err != nil {
				return err
			}
			values, err := parseAssignments(sets)
			if err != nil {
				return err
			}
			if len(values) == 0 {
				return errors.Precondition("nothing to write, use --set field=value")
			}
			m, err := s.model(ctx, args[0])
			if err != nil {
				return err
			}
			r, err := m.Browse(ctx, ids[0])
			if err != nil {
				return err
			}
			for _, name := range sortedKeys(values) {
				if err := r.Set(name, values[name]); err != nil {
					return err
				}
			}
			dirty := r.Dirty()
			if err := r.Save(ctx); err != nil {
				return err
			}
			row, err := renderRecord(ctx, r, dirty)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), row)
		}),
	}
	cmd.Flags().StringArrayVarP(&sets, "set", "s", nil, "field=value, value parsed as JSON when possible")
	return cmd
}

func newUnlinkCmd(p *cliParams) *cobra.Command {
	return &cobra.Command{
		Use:   "unlink <model> <id>...",
		Short: "Delete records",
		Args:  cobra.MinimumNArgs(2),
		RunE: withSession(p, func(ctx context.Context, s *session, cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args[1:])
			if err != nil {
				return err
			}
			m, err := s.model(ctx, args[0])
			if err != nil {
				return err
			}
			records, err := m.BrowseMany(ctx, ids)
			if err != nil {
				return err
			}
			return m.Unlink(ctx, records...)
		}),
	}
}

func newCallCmd(p *cliParams) *cobra.Command {
	return &cobra.Command{
		Use:   "call <model> <method> [json-arg]...",
		Short: "Invoke any model method with JSON arguments",
		Args:  cobra.MinimumNArgs(2),
		RunE: withSession(p, func(ctx context.Context, s *session, cmd *cobra.Command, args []string) error {
			callArgs := make([]any, 0, len(args)-2)
			for _, a := range args[2:] {
				callArgs = append(callArgs, parseValue(a))
			}
			result, err := s.client.Proxy(s.db, args[0]).Invoke(ctx, args[1], callArgs...)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), jsonSafe(result))
		}),
	}
}

// jsonSafe 把解码后的载荷转换为可 JSON 编码的值
func jsonSafe(v any) any {
	switch val := v.(type) {
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = jsonSafe(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = jsonSafe(item)
		}
		return out
	case *transport.Exception:
		return val.Class() + ": " + val.Text()
	}
	return v
}
