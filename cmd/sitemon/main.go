// Package main is the CLI entry point for sitemon.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/focusd/site_block/internal/daemon"
	"github.com/eliteGoblin/focusd/site_block/internal/domain"
	"github.com/eliteGoblin/focusd/site_block/internal/hostname"
	"github.com/eliteGoblin/focusd/site_block/internal/infra"
	"github.com/eliteGoblin/focusd/site_block/internal/policy"
	"github.com/eliteGoblin/focusd/site_block/internal/usecase"
)

var (
	// Version info (set via ldflags)
	Version   = "0.3.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sitemon",
	Short: "Focus timer and website blocker",
	Long: `sitemon runs focus sessions and blocks distracting websites while
one is active. Blocking also engages on a recurring schedule or under
nuclear mode, a hard commitment that cannot be lifted early.

The background daemon owns all state; the CLI talks to it over a
local socket.`,
	Version: Version,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the background daemon",
	Long: `Launches the sitemon daemon if it is not already running.
The daemon recovers any persisted session, re-arms timers, and
re-asserts blocking rules before accepting commands.`,
	RunE: runStart,
}

var focusCmd = &cobra.Command{
	Use:   "focus [minutes]",
	Short: "Start a focus session",
	Long: `Starts a focus session and engages blocking for its duration.
Without an argument, uses the configured default length.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFocus,
}

var breakCmd = &cobra.Command{
	Use:   "break",
	Short: "Start a break",
	Long:  `Starts a break. Blocking is lifted for its duration. Use --long for a long break.`,
	RunE:  runBreak,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the current session",
	Long: `Stops the running session, recording partial focus time.
Refused while nuclear mode is active.`,
	RunE: runStop,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show session and blocking status",
	RunE:  runStatus,
}

var blockCmd = &cobra.Command{
	Use:   "block",
	Short: "Manage the manual blocklist",
}

var blockListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show blocked domains",
	RunE:  runBlockList,
}

var blockAddCmd = &cobra.Command{
	Use:   "add <domain>...",
	Short: "Add domains to the blocklist",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runBlockAdd,
}

var blockRmCmd = &cobra.Command{
	Use:   "rm <domain>...",
	Short: "Remove domains from the blocklist",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runBlockRm,
}

var blockSetCmd = &cobra.Command{
	Use:   "set <domain>...",
	Short: "Replace the blocklist wholesale",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runBlockSet,
}

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Manage prebuilt domain groups",
}

var groupListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show available groups",
	RunE:  runGroupList,
}

var groupToggleCmd = &cobra.Command{
	Use:   "toggle <id>",
	Short: "Toggle a group on or off",
	Args:  cobra.ExactArgs(1),
	RunE:  runGroupToggle,
}

var nuclearCmd = &cobra.Command{
	Use:   "nuclear <minutes>",
	Short: "Activate nuclear mode",
	Long: `Engages blocking unconditionally for the given number of minutes.
While active, sessions cannot be stopped and the blocklist cannot be
edited. There is no way to cancel it early.`,
	Args: cobra.ExactArgs(1),
	RunE: runNuclear,
}

var checkCmd = &cobra.Command{
	Use:   "check <domain-or-url>",
	Short: "Ask whether a site would be blocked right now",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

var overrideCmd = &cobra.Command{
	Use:   "override <domain>",
	Short: "Temporarily unblock one domain",
	Long: `Lifts blocking for one domain for five minutes and records the
lapse against today's score. Refused while nuclear mode is active.`,
	Args: cobra.ExactArgs(1),
	RunE: runOverride,
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Configure the recurring blocking window",
	Long: `Sets a recurring local-time window during which blocking engages
without a session, e.g.:

  sitemon schedule --days 1,2,3,4,5 --start 09:00 --end 17:00
  sitemon schedule --off`,
	RunE: runSchedule,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent focus sessions",
	Long:  `Lists recent focus sessions, newest first. Use -n to change how many.`,
	RunE:  runHistory,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

// Hidden daemon command - used for self-exec when spawning the daemon
var daemonCmd = &cobra.Command{
	Use:    "daemon",
	Hidden: true,
	RunE:   runDaemon,
}

var (
	configPath    string
	longBreak     bool
	jsonOutput    bool
	historyLimit  int
	scheduleOff   bool
	scheduleDays  string
	scheduleStart string
	scheduleEnd   string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	breakCmd.Flags().BoolVar(&longBreak, "long", false, "Take a long break")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of sessions to show")
	scheduleCmd.Flags().BoolVar(&scheduleOff, "off", false, "Disable the schedule")
	scheduleCmd.Flags().StringVar(&scheduleDays, "days", "1,2,3,4,5", "Active weekdays, 0=Sunday..6=Saturday")
	scheduleCmd.Flags().StringVar(&scheduleStart, "start", "09:00", "Window start (HH:MM, local)")
	scheduleCmd.Flags().StringVar(&scheduleEnd, "end", "17:00", "Window end (HH:MM, local)")

	blockCmd.AddCommand(blockListCmd)
	blockCmd.AddCommand(blockAddCmd)
	blockCmd.AddCommand(blockRmCmd)
	blockCmd.AddCommand(blockSetCmd)
	groupCmd.AddCommand(groupListCmd)
	groupCmd.AddCommand(groupToggleCmd)

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(focusCmd)
	rootCmd.AddCommand(breakCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(blockCmd)
	rootCmd.AddCommand(groupCmd)
	rootCmd.AddCommand(nuclearCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(overrideCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(daemonCmd)
}

func loadConfig() (infra.Config, error) {
	return infra.LoadConfig(configPath)
}

// call sends one request over the socket and unwraps the response.
func call(req usecase.Request) (json.RawMessage, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	client := daemon.NewClient(cfg.SocketPath)
	resp, err := client.Call(req)
	if err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, errors.New(resp.Error)
	}
	return resp.Data, nil
}

func callWith(msgType string, payload any) (json.RawMessage, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return call(usecase.Request{Type: msgType, Payload: raw})
}

func fetchState() (usecase.FullState, error) {
	data, err := call(usecase.Request{Type: usecase.MsgGetState})
	if err != nil {
		return usecase.FullState{}, err
	}
	var st usecase.FullState
	if err := json.Unmarshal(data, &st); err != nil {
		return usecase.FullState{}, err
	}
	return st, nil
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	pm := infra.NewProcessManager()
	registry := infra.NewFileRegistry(cfg.DataDir, pm)
	if registry.Alive() {
		fmt.Println("sitemon is already running")
		return nil
	}

	if err := daemon.Spawn(configPath); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	// Wait a moment for the daemon to register
	time.Sleep(500 * time.Millisecond)

	if !registry.Alive() {
		fmt.Println("Daemon was started but has not registered yet.")
		fmt.Printf("Check the log at %s if 'sitemon status' keeps failing.\n", cfg.LogPath)
		return nil
	}

	fmt.Println("\n=== sitemon Started ===")
	fmt.Printf("Socket: %s\n", cfg.SocketPath)
	fmt.Printf("Data:   %s\n", cfg.DataDir)
	fmt.Println("\nRun 'sitemon focus 25' to begin a session.")
	fmt.Println("=======================")
	return nil
}

func runFocus(cmd *cobra.Command, args []string) error {
	minutes := 0
	if len(args) == 1 {
		m, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid minutes: %q", args[0])
		}
		minutes = m
	}
	if minutes == 0 {
		st, err := fetchState()
		if err != nil {
			return err
		}
		minutes = st.Settings.FocusMinutes
	}

	if _, err := callWith(usecase.MsgStartFocus, usecase.StartFocusRequest{Minutes: minutes}); err != nil {
		return err
	}
	fmt.Printf("Focus session started: %d minutes. Distracting sites are now blocked.\n", minutes)
	return nil
}

func runBreak(cmd *cobra.Command, args []string) error {
	if _, err := callWith(usecase.MsgStartBreak, usecase.StartBreakRequest{IsLong: longBreak}); err != nil {
		return err
	}
	if longBreak {
		fmt.Println("Long break started. Blocking is lifted.")
	} else {
		fmt.Println("Break started. Blocking is lifted.")
	}
	return nil
}

func runStop(cmd *cobra.Command, args []string) error {
	if _, err := call(usecase.Request{Type: usecase.MsgStopSession}); err != nil {
		return err
	}
	fmt.Println("Session stopped.")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	pm := infra.NewProcessManager()
	registry := infra.NewFileRegistry(cfg.DataDir, pm)

	fmt.Println("\n=== sitemon Status ===")
	if !registry.Alive() {
		fmt.Println("Daemon: NOT RUNNING")
		fmt.Println("\nRun 'sitemon start' to launch it.")
		return nil
	}

	st, err := fetchState()
	if err != nil {
		return err
	}

	fmt.Println("Daemon: RUNNING")
	if info, err := registry.Get(); err == nil && info != nil && info.LastHeartbeat > 0 {
		lastBeat := time.Unix(info.LastHeartbeat, 0)
		fmt.Printf("Last heartbeat: %s ago\n", time.Since(lastBeat).Round(time.Second))
	}

	switch st.Session.Status {
	case domain.StatusIdle:
		fmt.Println("Session: none")
	case domain.StatusFocus:
		fmt.Printf("Session: FOCUS, %s left (cycle %d)\n",
			formatRemaining(st.Session.RemainingSeconds), st.Session.Cycle)
	case domain.StatusBreak:
		fmt.Printf("Session: break, %s left\n", formatRemaining(st.Session.RemainingSeconds))
	case domain.StatusLongBreak:
		fmt.Printf("Session: long break, %s left\n", formatRemaining(st.Session.RemainingSeconds))
	}

	if st.NuclearActive {
		fmt.Println("Nuclear mode: ACTIVE (cannot be lifted early)")
	}

	for _, ow := range st.Overrides {
		fmt.Printf("Override: %s unblocked until %s\n",
			ow.Domain, time.Unix(ow.ExpiresAt, 0).Format("15:04:05"))
	}

	fmt.Printf("\nToday: %d sessions, %d focused minutes, %d distractions (score %d)\n",
		st.TodayStats.SessionsCompleted, st.TodayStats.FocusMinutes,
		st.TodayStats.Distractions, st.Score)
	fmt.Printf("Streak: %d day(s)\n", st.Streak)

	fmt.Printf("\nBlocklist: %d domain(s)", len(st.Blocklist))
	if len(st.ActiveGroups) > 0 {
		fmt.Printf(" + groups: %s", strings.Join(st.ActiveGroups, ", "))
	}
	fmt.Println()
	if !st.Onboarded {
		fmt.Println("\nFirst time? Add sites with 'sitemon block add <domain>' and run 'sitemon focus 25'.")
	}
	fmt.Println("======================")
	return nil
}

func runBlockList(cmd *cobra.Command, args []string) error {
	st, err := fetchState()
	if err != nil {
		return err
	}

	if len(st.Blocklist) == 0 && len(st.ActiveGroups) == 0 {
		fmt.Println("Blocklist is empty. Add domains with 'sitemon block add <domain>'.")
		return nil
	}

	if len(st.Blocklist) > 0 {
		fmt.Println("Blocked domains:")
		for _, d := range st.Blocklist {
			fmt.Printf("  - %s\n", d)
		}
	}
	if len(st.ActiveGroups) > 0 {
		fmt.Printf("Active groups: %s\n", strings.Join(st.ActiveGroups, ", "))
	}
	return nil
}

func runBlockAdd(cmd *cobra.Command, args []string) error {
	st, err := fetchState()
	if err != nil {
		return err
	}
	return updateBlocklist(append(st.Blocklist, args...))
}

func runBlockRm(cmd *cobra.Command, args []string) error {
	st, err := fetchState()
	if err != nil {
		return err
	}

	var kept []string
	for _, d := range st.Blocklist {
		remove := false
		for _, arg := range args {
			norm, ok := hostname.Normalize(arg)
			if ok && hostname.Equal(d, norm) {
				remove = true
				break
			}
		}
		if !remove {
			kept = append(kept, d)
		}
	}
	if len(kept) == len(st.Blocklist) {
		fmt.Println("No matching domains on the blocklist.")
		return nil
	}
	return updateBlocklist(kept)
}

func runBlockSet(cmd *cobra.Command, args []string) error {
	return updateBlocklist(args)
}

func updateBlocklist(domains []string) error {
	if domains == nil {
		domains = []string{}
	}
	if _, err := callWith(usecase.MsgUpdateBlocklist, usecase.UpdateBlocklistRequest{Domains: domains}); err != nil {
		return err
	}
	fmt.Println("Blocklist updated.")
	return nil
}

func runGroupList(cmd *cobra.Command, args []string) error {
	groups, err := policy.NewRegistry()
	if err != nil {
		return err
	}

	st, err := fetchState()
	active := map[string]bool{}
	if err == nil {
		for _, id := range st.ActiveGroups {
			active[id] = true
		}
	}

	fmt.Println("\n=== Domain Groups ===")
	for _, g := range groups.GetAll() {
		marker := " "
		if active[g.ID] {
			marker = "*"
		}
		fmt.Printf("\n[%s] %s %s\n", g.ID, g.Name, marker)
		for _, d := range g.Domains {
			fmt.Printf("    - %s\n", d)
		}
	}
	fmt.Println("\n* = active. Toggle with 'sitemon group toggle <id>'.")
	fmt.Println("=====================")
	return nil
}

func runGroupToggle(cmd *cobra.Command, args []string) error {
	data, err := callWith(usecase.MsgToggleGroup, usecase.ToggleGroupRequest{GroupID: args[0]})
	if err != nil {
		return err
	}

	var resp usecase.ToggleGroupResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return err
	}
	if len(resp.ActiveGroups) == 0 {
		fmt.Println("No groups active.")
	} else {
		fmt.Printf("Active groups: %s\n", strings.Join(resp.ActiveGroups, ", "))
	}
	return nil
}

func runNuclear(cmd *cobra.Command, args []string) error {
	minutes, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid minutes: %q", args[0])
	}

	if _, err := callWith(usecase.MsgActivateNuclear, usecase.ActivateNuclearRequest{Minutes: minutes}); err != nil {
		return err
	}
	fmt.Printf("Nuclear mode active for %d minutes. There is no way to cancel it.\n", minutes)
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	data, err := callWith(usecase.MsgCheckBlocked, usecase.CheckBlockedRequest{URL: args[0]})
	if err != nil {
		return err
	}

	var decision domain.BlockDecision
	if err := json.Unmarshal(data, &decision); err != nil {
		return err
	}
	if decision.Blocked {
		fmt.Printf("BLOCKED (%s)\n", decision.Reason)
	} else {
		fmt.Println("allowed")
	}
	return nil
}

func runOverride(cmd *cobra.Command, args []string) error {
	if _, err := callWith(usecase.MsgOverrideBlock, usecase.DomainRequest{Domain: args[0]}); err != nil {
		return err
	}
	fmt.Printf("%s unblocked for 5 minutes. This counts against today's score.\n", args[0])
	return nil
}

func runSchedule(cmd *cobra.Command, args []string) error {
	if scheduleOff {
		if _, err := callWith(usecase.MsgUpdateSchedule, usecase.UpdateScheduleRequest{Schedule: nil}); err != nil {
			return err
		}
		fmt.Println("Schedule disabled.")
		return nil
	}

	var days []int
	for _, part := range strings.Split(scheduleDays, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := strconv.Atoi(part)
		if err != nil {
			return fmt.Errorf("invalid day: %q", part)
		}
		days = append(days, d)
	}

	sched := &domain.Schedule{
		Enabled:   true,
		Days:      days,
		StartTime: scheduleStart,
		EndTime:   scheduleEnd,
	}
	if _, err := callWith(usecase.MsgUpdateSchedule, usecase.UpdateScheduleRequest{Schedule: sched}); err != nil {
		return err
	}
	fmt.Printf("Schedule set: days %s, %s-%s.\n", scheduleDays, scheduleStart, scheduleEnd)
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	data, err := callWith(usecase.MsgGetHistory, usecase.HistoryRequest{Limit: historyLimit})
	if err != nil {
		return err
	}

	var sessions []domain.SessionRecord
	if err := json.Unmarshal(data, &sessions); err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions recorded yet. Run 'sitemon focus 25' to begin one.")
		return nil
	}

	fmt.Println("\n=== Session History ===")
	for _, rec := range sessions {
		outcome := "stopped"
		if rec.Completed {
			outcome = "completed"
		}
		fmt.Printf("%s  %3d min focused  %s\n",
			time.Unix(rec.EndedAt, 0).Format("2006-01-02 15:04"),
			rec.FocusedMinutes, outcome)
	}
	fmt.Println("=======================")
	return nil
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	logger := createLogger(cfg.LogPath)
	defer func() { _ = logger.Sync() }()

	// Initialize infrastructure
	store, err := infra.NewFileStateStore(cfg.DataDir)
	if err != nil {
		return err
	}
	rules, err := infra.NewFileRuleTable(cfg.DataDir)
	if err != nil {
		return err
	}
	key, err := infra.EnsureKey(infra.NewFileKeyProvider(cfg.DataDir))
	if err != nil {
		return err
	}
	history, err := infra.NewEncryptedHistory(cfg.DataDir, key)
	if err != nil {
		return err
	}
	defer history.Close()

	pm := infra.NewProcessManager()
	registry := infra.NewFileRegistry(cfg.DataDir, pm)
	groups, err := policy.NewRegistry()
	if err != nil {
		return err
	}

	// The timer callback closes over the engine variable; fires cannot
	// happen before NewEngine returns because nothing is armed yet.
	var engine *usecase.Engine
	timers := daemon.NewTimerSet(func(id string) { engine.TimerFired(id) })
	defer timers.StopAll()

	engine = usecase.NewEngine(
		store,
		rules,
		history,
		infra.NewSystemClock(),
		timers,
		groups,
		policy.NewQuotes(),
		logger,
	)

	server := daemon.NewServer(cfg.SocketPath, engine, logger)

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("received shutdown signal")
		cancel()
	}()

	dcfg := daemon.DefaultConfig()
	dcfg.HistoryRetention = time.Duration(cfg.HistoryRetentionDays) * 24 * time.Hour

	info := domain.DaemonInfo{
		PID:       os.Getpid(),
		StartedAt: time.Now().Unix(),
		Version:   Version,
	}

	err = daemon.New(dcfg, engine, registry, server, info, logger).Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func createLogger(logPath string) *zap.Logger {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{logPath}
	config.ErrorOutputPaths = []string{logPath}
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := config.Build()
	if err != nil {
		// Fallback to stdout if file logging fails
		logger, _ = zap.NewProduction()
	}
	return logger
}

func formatRemaining(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		fmt.Printf(`{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Printf("sitemon %s (commit: %s, built: %s)\n",
			Version, Commit, BuildTime)
	}
}
