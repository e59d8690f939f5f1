// taskform opens the task dialog and manages the tasks it creates.
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/bborn/taskform/internal/config"
	"github.com/bborn/taskform/internal/db"
	"github.com/bborn/taskform/internal/events"
	"github.com/bborn/taskform/internal/executor"
	"github.com/bborn/taskform/internal/images"
	"github.com/bborn/taskform/internal/taskform"
	"github.com/bborn/taskform/internal/tasks"
	"github.com/bborn/taskform/internal/ui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	version = "dev"

	// Styles for CLI output
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	boldStyle    = lipgloss.NewStyle().Bold(true)
)

// app holds everything a command needs once the database is open.
type app struct {
	db       *db.DB
	cfg      *config.Config
	profiles *executor.Profiles
	service  *tasks.Service
	events   *events.Emitter
	logger   *log.Logger
}

func main() {
	var (
		dbPath   string
		repoPath string
		logLevel string
		imgPaths []string
	)

	rootCmd := &cobra.Command{
		Use:     "taskform",
		Short:   "Create and edit tasks",
		Long:    "A terminal dialog for creating, editing, and starting tasks.",
		Version: version,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(dbPath, logLevel, func(a *app) error {
				return a.runDialog(taskform.CreateMode{}, nil, repoPath, imgPaths)
			})
		},
	}
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
	rootCmd.SetVersionTemplate(`{{.Version}}
`)

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to the task database (default $TASKFORM_DB_PATH or ~/.local/share/taskform/tasks.db)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default $TASKFORM_LOG_LEVEL or info)")
	rootCmd.PersistentFlags().StringVar(&repoPath, "repo", "", "Git repository to list base branches from (default repo_path setting)")
	rootCmd.PersistentFlags().StringArrayVar(&imgPaths, "image", nil, "Attach an image file (repeatable)")

	// New
	rootCmd.AddCommand(&cobra.Command{
		Use:   "new",
		Short: "Open the dialog to create a task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(dbPath, logLevel, func(a *app) error {
				return a.runDialog(taskform.CreateMode{}, nil, repoPath, imgPaths)
			})
		},
	})

	// Edit
	rootCmd.AddCommand(&cobra.Command{
		Use:   "edit <task-id>",
		Short: "Open the dialog to edit a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(dbPath, logLevel, func(a *app) error {
				mode, imgs, err := a.service.EditMode(args[0])
				if err != nil {
					return err
				}
				return a.runDialog(mode, imgs, repoPath, imgPaths)
			})
		},
	})

	// Duplicate
	rootCmd.AddCommand(&cobra.Command{
		Use:   "duplicate <task-id>",
		Short: "Open the dialog to create a copy of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(dbPath, logLevel, func(a *app) error {
				mode, err := a.service.DuplicateMode(args[0])
				if err != nil {
					return err
				}
				return a.runDialog(mode, nil, repoPath, imgPaths)
			})
		},
	})

	// Subtask
	subtaskCmd := &cobra.Command{
		Use:   "subtask <run-id>",
		Short: "Open the dialog to create a task spawned from a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, _ := cmd.Flags().GetString("base")
			return withApp(dbPath, logLevel, func(a *app) error {
				mode, err := a.service.SubtaskMode(args[0], base)
				if err != nil {
					return err
				}
				return a.runDialog(mode, nil, repoPath, imgPaths)
			})
		},
	}
	subtaskCmd.Flags().String("base", "", "Suggested base branch")
	rootCmd.AddCommand(subtaskCmd)

	// List
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, _ := cmd.Flags().GetString("status")
			limit, _ := cmd.Flags().GetInt("limit")
			return withApp(dbPath, logLevel, func(a *app) error {
				return a.list(status, limit)
			})
		},
	}
	listCmd.Flags().StringP("status", "s", "", "Only show tasks with this status")
	listCmd.Flags().IntP("limit", "n", 50, "Maximum number of tasks")
	rootCmd.AddCommand(listCmd)

	// Show
	rootCmd.AddCommand(&cobra.Command{
		Use:   "show <task-id>",
		Short: "Show a task with its rendered description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(dbPath, logLevel, func(a *app) error {
				return a.show(args[0])
			})
		},
	})

	// Profiles
	rootCmd.AddCommand(&cobra.Command{
		Use:   "profiles",
		Short: "List execution profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(dbPath, logLevel, func(a *app) error {
				def := a.profiles.DefaultID(a.cfg.DefaultProfile)
				for _, p := range a.profiles.Profiles {
					line := fmt.Sprintf("  %-24s %s", p.ProfileID.String(), dimStyle.Render(p.DisplayName()))
					if def != nil && *def == p.ProfileID {
						line = successStyle.Render("* ") + strings.TrimPrefix(line, "  ")
					}
					fmt.Println(line)
				}
				return nil
			})
		},
	})

	// Keybindings
	rootCmd.AddCommand(&cobra.Command{
		Use:   "keybindings",
		Short: "Print the default keybindings config",
		Long: fmt.Sprintf(`Print the default keybindings config.

Save the output to %s and edit it to change the dialog's keys.`, config.DefaultKeybindingsConfigPath()),
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Print(config.GenerateDefaultKeybindingsYAML())
		},
	})

	// Config
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Read and write settings",
	}
	configCmd.AddCommand(&cobra.Command{
		Use:   "get [key]",
		Short: "Print one setting, or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(dbPath, logLevel, func(a *app) error {
				keys := config.Keys
				if len(args) == 1 {
					keys = args
				}
				for _, key := range keys {
					value, err := a.cfg.Get(key)
					if err != nil {
						return err
					}
					if len(args) == 1 {
						fmt.Println(value)
					} else {
						fmt.Printf("%s = %s\n", boldStyle.Render(key), value)
					}
				}
				return nil
			})
		},
	})
	configCmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a setting",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(dbPath, logLevel, func(a *app) error {
				if err := a.cfg.Set(args[0], args[1]); err != nil {
					return err
				}
				fmt.Println(successStyle.Render(fmt.Sprintf("Set %s", args[0])))
				return nil
			})
		},
	})
	rootCmd.AddCommand(configCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

// withApp opens the database, loads configuration, and runs fn.
func withApp(dbPath, logLevel string, fn func(a *app) error) error {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "taskform",
	})
	if logLevel == "" {
		logLevel = os.Getenv("TASKFORM_LOG_LEVEL")
	}
	if logLevel != "" {
		level, err := log.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("invalid log level %q", logLevel)
		}
		logger.SetLevel(level)
	}

	if dbPath == "" {
		dbPath = db.DefaultPath()
	}
	database, err := db.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()

	cfg := config.New(database)
	profiles, err := executor.LoadProfilesFromPath(executor.DefaultProfilesConfigPath())
	if err != nil {
		logger.Warn("Using built-in profiles", "error", err)
		profiles = executor.DefaultProfiles()
	}

	a := &app{
		db:       database,
		cfg:      cfg,
		profiles: profiles,
		events:   events.New(events.DefaultHooksDir(), logger),
		logger:   logger,
	}
	defer a.events.Wait()
	a.service = a.newService(logger)
	return fn(a)
}

func (a *app) newService(logger *log.Logger) *tasks.Service {
	exec := executor.NewWithLogger(a.db, logger)
	store := images.NewStore(a.db, a.cfg.ImagesDir, logger)
	svc := tasks.New(a.db, exec, store, logger)
	svc.SetEmitter(a.events)
	return svc
}

// runDialog opens the dialog in mode and prints the outcome.
func (a *app) runDialog(mode taskform.Mode, seed []taskform.Image, repoPath string, imgPaths []string) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("the task dialog needs an interactive terminal")
	}

	// stderr is drawn over by the dialog, so log to the UI log file instead.
	logger := ui.GetLogger()
	defer ui.CloseLogger()
	logger.SetLevel(a.logger.GetLevel())
	service := a.newService(logger)

	if repoPath == "" {
		repoPath = a.cfg.RepoPath
	}

	c := taskform.New(taskform.Config{
		Mode: mode,
		Defaults: taskform.Defaults{
			Profile:  a.profiles.DefaultID(a.cfg.DefaultProfile),
			Profiles: a.profiles.IDs(),
		},
		Logger: logger,
	})
	if mode.Kind() == taskform.ModeEdit {
		c.SeedImages(seed)
	}
	// uploaded once the dialog starts
	c.AddFiles(imgPaths...)

	keys := ui.DefaultKeyMap()
	if kb, err := config.LoadKeybindings(); err != nil {
		a.logger.Warn("Ignoring keybindings config", "error", err)
	} else {
		keys = ui.ApplyKeybindingsConfig(keys, kb)
	}

	width, height := 80, 24
	if w, h, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
		width, height = w, h
	}

	dialog := ui.NewDialogModel(ui.DialogConfig{
		Controller: c,
		Backend:    service,
		Uploader:   service,
		Profiles:   a.profiles,
		RepoPath:   repoPath,
		Keys:       keys,
		Logger:     logger,
	}, width, height)
	defer dialog.Close()

	p := tea.NewProgram(dialog, tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return err
	}

	result := final.(*ui.DialogModel).Result()
	if result == nil {
		fmt.Println(dimStyle.Render("Cancelled"))
		return nil
	}

	verb := "Created"
	switch {
	case mode.Kind() == taskform.ModeEdit:
		verb = "Saved"
	case result.Status == taskform.StatusInProgress:
		verb = "Created and started"
	}
	fmt.Println(successStyle.Render(fmt.Sprintf("%s task %s", verb, result.ID)) + " " + boldStyle.Render(result.Title))
	return nil
}

func (a *app) list(status string, limit int) error {
	if status != "" && !db.IsValidStatus(status) {
		return fmt.Errorf("invalid status %q (want one of %s)", status, strings.Join(db.Statuses, ", "))
	}
	list, err := a.db.ListTasks(db.ListTasksOptions{Status: status, Limit: limit})
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println(dimStyle.Render("No tasks"))
		return nil
	}
	for _, t := range list {
		st := ui.StatusStyle(taskform.Status(t.Status)).Render(fmt.Sprintf("%-10s", t.Status))
		fmt.Printf("%s  %s  %s\n", dimStyle.Render(t.ID), st, t.Title)
	}
	return nil
}

func (a *app) show(id string) error {
	t, err := a.db.GetTask(id)
	if err != nil {
		return err
	}
	fmt.Println(boldStyle.Render(t.Title))
	fmt.Println(dimStyle.Render(fmt.Sprintf("%s  %s  created %s", t.ID, t.Status, t.CreatedAt.Format("2006-01-02 15:04"))))
	if t.ParentRunID != "" {
		fmt.Println(dimStyle.Render("from run " + t.ParentRunID))
	}

	imgs, err := a.db.ListTaskImages(t.ID)
	if err != nil {
		return err
	}
	for _, img := range imgs {
		fmt.Println(dimStyle.Render(fmt.Sprintf("  %s (%s)", img.OriginalName, images.FormatSize(img.Size))))
	}

	if strings.TrimSpace(t.Body) == "" {
		return nil
	}
	width := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		width = w
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(width))
	if err != nil {
		return err
	}
	out, err := r.Render(t.Body)
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}
