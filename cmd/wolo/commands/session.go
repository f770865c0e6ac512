package commands

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/wolo-run/wolo/internal/config"
	"github.com/wolo-run/wolo/internal/session"
	"github.com/wolo-run/wolo/pkg/types"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect and manage persisted sessions",
	Long: `List, show, resume, create, watch, delete, or clean up persisted
sessions under $XDG_DATA_HOME/wolo/storage (default
~/.local/share/wolo/storage); nothing is stored under ~/.wolo.`,
}

var sessionListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List sessions with status",
	RunE:    runSessionList,
}

var sessionShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one session's metadata and message count",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionShow,
}

var sessionResumeCmd = &cobra.Command{
	Use:   "resume <id> [prompt]",
	Short: "Resume an existing session (equivalent to --resume)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flagResume = args[0]
		return runAgentInvocation(cmd, args[1:])
	},
}

var sessionCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an empty session without starting an agent loop",
	RunE:  runSessionCreate,
}

var sessionWatchCmd = &cobra.Command{
	Use:   "watch <id>",
	Short: "Connect to a session's watch socket and print events (never writes)",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionWatch,
}

var sessionDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a session and its messages",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionDelete,
}

var sessionCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete every session with no live owning process",
	RunE:  runSessionClean,
}

func init() {
	sessionCmd.AddCommand(sessionListCmd)
	sessionCmd.AddCommand(sessionShowCmd)
	sessionCmd.AddCommand(sessionResumeCmd)
	sessionCmd.AddCommand(sessionCreateCmd)
	sessionCmd.AddCommand(sessionWatchCmd)
	sessionCmd.AddCommand(sessionDeleteCmd)
	sessionCmd.AddCommand(sessionCleanCmd)
}

// openSessionStore opens the on-disk session store without the rest of a
// runtime (agent/tool registries, LLM client), for commands that only
// touch session metadata.
func openSessionStore() (*session.Store, error) {
	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return nil, err
	}
	return session.NewStore(paths.StoragePath())
}

func runSessionList(cmd *cobra.Command, args []string) error {
	store, err := openSessionStore()
	if err != nil {
		return err
	}

	sessions, err := store.ListSessions()
	if err != nil {
		return err
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].CreatedAt < sessions[j].CreatedAt })

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tAGENT\tSTATUS\tCREATED\tTITLE\t")
	for _, sess := range sessions {
		status := "idle"
		if session.IsRunning(sess) {
			status = "running"
		}
		created := time.UnixMilli(sess.CreatedAt).Format(time.RFC3339)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t\n", sess.ID, sess.AgentType, status, created, sess.Title)
	}
	return w.Flush()
}

func runSessionShow(cmd *cobra.Command, args []string) error {
	store, err := openSessionStore()
	if err != nil {
		return err
	}

	sess, err := store.GetSession(args[0])
	if err != nil {
		return err
	}
	messages, err := store.ListMessages(args[0])
	if err != nil {
		return err
	}

	entry := types.SessionListEntry{
		Session:      *sess,
		MessageCount: len(messages),
		IsRunning:    session.IsRunning(sess),
	}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func runSessionCreate(cmd *cobra.Command, args []string) error {
	store, err := openSessionStore()
	if err != nil {
		return err
	}

	agentName := resolveAgentName(flagAgent)
	now := time.Now()
	sess := &types.Session{
		ID:            session.NewSessionID(agentName, now),
		CreatedAt:     now.UnixMilli(),
		UpdatedAt:     now.UnixMilli(),
		AgentType:     agentName,
		Title:         flagSessionName,
		ExecutionMode: types.ModeSolo,
	}
	if err := store.CreateSession(sess); err != nil {
		return err
	}
	fmt.Println(sess.ID)
	return nil
}

func runSessionWatch(cmd *cobra.Command, args []string) error {
	store, err := openSessionStore()
	if err != nil {
		return err
	}
	sessionID := args[0]
	if _, err := store.GetSession(sessionID); err != nil {
		return fmt.Errorf("watch %s: %w", sessionID, err)
	}

	socketPath := filepath.Join(store.SessionDir(sessionID), "watch.sock")
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return fmt.Errorf("connect to watch socket: %w", err)
	}
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		fmt.Println(scanner.Text())
	}
	return scanner.Err()
}

func runSessionDelete(cmd *cobra.Command, args []string) error {
	store, err := openSessionStore()
	if err != nil {
		return err
	}
	if err := store.DeleteSession(args[0]); err != nil {
		return err
	}
	fmt.Printf("Deleted session %s\n", args[0])
	return nil
}

func runSessionClean(cmd *cobra.Command, args []string) error {
	store, err := openSessionStore()
	if err != nil {
		return err
	}
	sessions, err := store.ListSessions()
	if err != nil {
		return err
	}

	removed := 0
	for _, sess := range sessions {
		if session.IsRunning(sess) {
			continue
		}
		if err := store.DeleteSession(sess.ID); err != nil {
			fmt.Fprintf(os.Stderr, "skip %s: %v\n", sess.ID, err)
			continue
		}
		removed++
	}
	fmt.Printf("Removed %d session(s)\n", removed)
	return nil
}
