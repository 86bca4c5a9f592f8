package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"
	_ "time/tzdata"

	"calrecur/internal/agenda"
	"calrecur/internal/config"
	"calrecur/internal/ics"
	appLog "calrecur/internal/log"
	"calrecur/internal/model"
	"calrecur/internal/moment"
	"calrecur/internal/notify"
	"calrecur/internal/store"
	"calrecur/internal/web"
)

const stopTimeout = 10 * time.Second

type flagConfig struct {
	configPath string
	listen     string
	logLevel   string
	once       bool
	at         string
	days       int
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.logLevel != "" {
		conf.LogLevel = flags.logLevel
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	appLog.Info("calrecur starting",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"refresh", conf.RefreshCron,
		"horizon_days", conf.HorizonDays,
		"calendars", len(conf.Calendars),
		"database", conf.Database,
		"once", flags.once,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if flags.once {
		err = runOnce(ctx, conf, flags, os.Stdout)
	} else {
		err = serve(ctx, conf)
	}
	if err != nil {
		appLog.Error("calrecur failed", err)
		os.Exit(1)
	}
	appLog.Info("calrecur exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.logLevel, "log-level", "", "debug, info, warn or error (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Load calendars, print the agenda and exit")
	flag.StringVar(&cfg.at, "at", "", "First agenda date for -once: YYYY-MM-DD or YYYYMMDD[THHMMSS[Z]] (default today)")
	flag.IntVar(&cfg.days, "days", 1, "Number of dates printed by -once")

	flag.Parse()

	return cfg
}

// runOnce refreshes every calendar and prints the agenda.
func runOnce(ctx context.Context, conf *config.Config, flags flagConfig, out io.Writer) error {
	svc, err := agenda.NewService(conf, ics.NewFetcher(conf.CacheDir, conf.Workers))
	if err != nil {
		return err
	}
	from := svc.Today()
	if flags.at != "" {
		if from, err = parseAt(flags.at); err != nil {
			return err
		}
	}
	snap, err := svc.Refresh(ctx)
	if err != nil {
		return err
	}
	for _, f := range snap.Failures {
		appLog.Warn("calendar not loaded", "error", f)
	}
	days, err := svc.Agenda(ctx, from, max(flags.days, 1))
	if err != nil {
		return err
	}
	return printAgenda(out, days, svc.Options().Location)
}

// serve runs the refresh schedule and the HTTP server until ctx ends.
func serve(ctx context.Context, conf *config.Config) error {
	svc, err := agenda.NewService(conf, ics.NewFetcher(conf.CacheDir, conf.Workers))
	if err != nil {
		return err
	}

	var history web.History
	if conf.Database != "" {
		st, err := store.Open(ctx, conf.Database)
		if err != nil {
			return err
		}
		defer st.Close()
		svc.OnRefresh(recordRun(st, time.Duration(conf.HistoryDays)*24*time.Hour))
		history = st
	}

	hub := notify.NewHub()
	svc.OnRefresh(func(_ context.Context, run model.Run) {
		hub.Broadcast(notify.RefreshMessage(run))
	})

	if _, err := svc.Refresh(ctx); err != nil {
		appLog.Error("initial refresh failed", err)
	}

	sched, err := agenda.NewScheduler(conf.RefreshCron, svc, svc.Options().Location)
	if err != nil {
		return err
	}
	sched.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		sched.Stop(stopCtx)
	}()

	return web.NewServer(conf, svc, history, hub).Run(ctx)
}

// recordRun stores each refresh run and drops runs older than keep.
func recordRun(st *store.Store, keep time.Duration) agenda.RefreshHook {
	return func(ctx context.Context, run model.Run) {
		ctx = context.WithoutCancel(ctx)
		if err := st.RecordRun(ctx, run); err != nil {
			appLog.Error("record refresh run failed", err, "run_id", run.ID)
			return
		}
		n, err := st.Prune(ctx, run.At.Add(-keep))
		if err != nil {
			appLog.Error("prune refresh runs failed", err)
			return
		}
		if n > 0 {
			appLog.Debug("pruned refresh runs", "count", int(n))
		}
	}
}

func parseAt(s string) (moment.Moment, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return moment.WholeDayOf(t), nil
	}
	m, err := moment.Parse(s)
	if err != nil {
		return moment.Moment{}, fmt.Errorf("-at: %w", err)
	}
	return m, nil
}

func printAgenda(out io.Writer, days []agenda.Agenda, loc *time.Location) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for i, day := range days {
		if i > 0 {
			fmt.Fprintln(tw)
		}
		fmt.Fprintf(tw, "%s (%s)\n", day.Date, loc)
		if len(day.Entries) == 0 {
			fmt.Fprintln(tw, "  nothing scheduled")
		}
		for _, e := range day.Entries {
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", span(e), e.Summary, e.Overlap)
		}
		if day.Failures > 0 {
			fmt.Fprintf(tw, "  (%d events could not be evaluated)\n", day.Failures)
		}
	}
	return tw.Flush()
}

func span(o model.Occurrence) string {
	if o.AllDay {
		last := o.End.AddDate(0, 0, -1)
		if last.Format(time.DateOnly) == o.Start.Format(time.DateOnly) {
			return "all day"
		}
		return o.Start.Format("Jan 2") + " - " + last.Format("Jan 2")
	}
	return o.Start.Format("15:04") + "-" + o.End.Format("15:04")
}
