package main

import (
	"code-mentor/domain/chat"
	"code-mentor/repositories"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

const cachePrefix = "chat_"

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Dump the rooms cached by the local backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("db")
			room, _ := cmd.Flags().GetString("room")
			return inspect(cmd.OutOrStdout(), path, chat.RoomID(room))
		},
	}
	cmd.Flags().String("db", "./data/badger", "Path to badger DB")
	cmd.Flags().String("room", "", "Show the messages of one room")
	return cmd
}

func inspect(out io.Writer, path string, room chat.RoomID) error {
	db, err := badger.Open(badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer db.Close()

	cache := repositories.NewCacheRepository(db, slog.Default(), 0)
	prefix := cachePrefix
	if room != "" {
		prefix = room.CacheKey()
	}
	rooms, err := cache.List(prefix)
	if err != nil {
		return err
	}

	table := newTable(out)
	if room == "" {
		table.SetHeader([]string{"Key", "Messages", "Bytes", "Last Sender", "Last Message"})
		for _, r := range rooms {
			sender, at := "-", "-"
			if n := len(r.Messages); n > 0 {
				sender = r.Messages[n-1].Sender
				at = r.Messages[n-1].SentAt.Format("2006-01-02 15:04:05")
			}
			table.Append([]string{r.Key, strconv.Itoa(len(r.Messages)), strconv.Itoa(r.Size), sender, at})
		}
		table.Render()
		return nil
	}

	table.SetHeader([]string{"ID", "Type", "Sender", "Timestamp", "Content"})
	for _, r := range lo.Filter(rooms, func(r repositories.CachedRoom, _ int) bool { return r.Key == prefix }) {
		for _, m := range r.Messages {
			table.Append([]string{
				shorten(m.ID, 8),
				string(m.Kind),
				m.Sender,
				m.SentAt.Format("15:04:05"),
				strings.ReplaceAll(m.Content, "\n", " "),
			})
		}
	}
	table.Render()
	return nil
}

func newTable(out io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(out)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

func shorten(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
