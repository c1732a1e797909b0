package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"digitalcoo/internal/app"
	"digitalcoo/internal/config"
	"digitalcoo/internal/db"
	"digitalcoo/internal/engine"
	"digitalcoo/internal/engine/auth"
	"digitalcoo/internal/migrate"
	"digitalcoo/internal/repo"
	"digitalcoo/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "coo",
	Short: "Digital COO CLI",
	Long: `Digital COO turns task lists into triaged, executable work.
- Import: pull a task list document from Drive (or a local folder), extract its tasks and triage each one.
- Triage: the classifier files a task as auto_execute, delegate_agent or human_required.
- Execute: the executor produces a result for a task; failures are recorded on the task, not thrown.
- Posts: master documents are turned into drafts for six social platforms.
- Dashboard: counters and the list of tasks waiting for a human.
Secrets come from coo.yml or the environment (COO_CLASSIFIER_API_KEY, COO_EXECUTOR_API_KEY, COO_JWT_SECRET).`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	_ = godotenv.Load()
	viper.SetEnvPrefix("COO")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("user-id", "local-user", "user the command acts for")
	rootCmd.PersistentFlags().String("log-level", "", "log level (overrides config)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("user-id", rootCmd.PersistentFlags().Lookup("user-id"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(driveCmd())
	rootCmd.AddCommand(postsCmd())
	rootCmd.AddCommand(dashboardCmd())
	rootCmd.AddCommand(notificationsCmd())
	rootCmd.AddCommand(teamCmd())
	rootCmd.AddCommand(apiKeyCmd())
	rootCmd.AddCommand(tokenCmd())
}

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create coo.yml and the workspace database",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")
	return cmd
}

func configCmd() *cobra.Command {
	cfgCmd := &cobra.Command{Use: "config", Short: "Inspect configuration"}
	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration (secrets redacted)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			redact := func(s *string) {
				if *s != "" {
					*s = "***"
				}
			}
			redact(&cfg.Auth.JWTSecret)
			redact(&cfg.LLM.Classifier.APIKey)
			redact(&cfg.LLM.Executor.APIKey)
			redact(&cfg.Drive.APIKey)
			redact(&cfg.Notify.SlackWebhookURL)
			return printJSON(cfg)
		},
	})
	cfgCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate coo.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	})
	return cfgCmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := db.Open(db.Config{Workspace: viper.GetString("workspace")})
			if err != nil {
				return err
			}
			defer conn.Close()
			applied, err := migrate.MigrateContext(cmd.Context(), conn)
			if err != nil {
				return err
			}
			version, err := migrate.Version(cmd.Context(), conn)
			if err != nil {
				return err
			}
			return printJSONOrTable(map[string]any{"applied": applied, "version": version})
		},
	}
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(ctx context.Context, rt *app.Runtime) error {
				cfg := rt.Config
				if addr == "" {
					addr = cfg.Server.Addr
				}
				if basePath == "" {
					basePath = cfg.Server.BasePath
				}
				if cfg.Auth.JWTSecret == "" && !cfg.Auth.AllowDevHeader {
					return fmt.Errorf("auth.jwt_secret (or COO_JWT_SECRET) is required unless auth.allow_dev_header is set")
				}
				handler, err := server.New(server.Config{
					Engine:   rt.Engine,
					BasePath: basePath,
					Auth: server.AuthConfig{
						JWTSecret:      cfg.Auth.JWTSecret,
						AllowDevHeader: cfg.Auth.AllowDevHeader,
					},
					Logger: rt.Log,
				})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				rt.Log.Info("serving Digital COO API",
					zap.String("addr", addr),
					zap.String("base_path", basePath),
					zap.Bool("dev_header", cfg.Auth.AllowDevHeader),
				)
				fmt.Printf("Serving Digital COO API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (default from config)")
	return cmd
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Fill an empty account with demo projects, an agent and tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.SeedDemo(ctx, userID())
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	}
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}
	var status string
	list := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListProjects(ctx, userID(), status)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("ID", "Name", "Status", "Created")
				for _, p := range items {
					tw.AppendRow(table.Row{p.ID, p.Name, p.Status, p.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	list.Flags().StringVar(&status, "status", "", "status filter")

	var name, desc string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create project",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				in := engine.ProjectInput{Name: &name}
				if desc != "" {
					in.Description = &desc
				}
				p, err := e.CreateProject(ctx, userID(), in)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "project name")
	create.Flags().StringVar(&desc, "description", "", "description")
	_ = create.MarkFlagRequired("name")

	prj.AddCommand(list, create)
	return prj
}

func taskCmd() *cobra.Command {
	t := &cobra.Command{Use: "task", Short: "Manage and run tasks"}
	t.AddCommand(taskListCmd())
	t.AddCommand(taskCreateCmd())
	t.AddCommand(taskShowCmd())
	t.AddCommand(taskTriageCmd())
	t.AddCommand(taskExecuteCmd())
	return t
}

func taskListCmd() *cobra.Command {
	var f repo.TaskFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				f.UserID = userID()
				tasks, err := e.ListTasks(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				tw := newTable("ID", "Title", "Category", "Status", "Priority", "Project")
				for _, t := range tasks {
					tw.AppendRow(table.Row{t.ID, t.Title, t.Category, t.Status, t.Priority, optional(t.ProjectID)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.ProjectID, "project", "", "project id")
	cmd.Flags().StringVar(&f.Category, "category", "", "category filter")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.Priority, "priority", "", "priority filter")
	cmd.Flags().IntVar(&f.Limit, "limit", 50, "maximum number of tasks")
	return cmd
}

func taskCreateCmd() *cobra.Command {
	var title, desc, priority, projectID, due string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				in := engine.TaskInput{Title: &title}
				if desc != "" {
					in.Description = &desc
				}
				if priority != "" {
					in.Priority = &priority
				}
				if projectID != "" {
					in.ProjectID = &projectID
				}
				if due != "" {
					in.DueDate = &due
				}
				task, err := e.CreateTask(ctx, userID(), in)
				if err != nil {
					return err
				}
				return printJSONOrTable(task)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "task title")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	cmd.Flags().StringVar(&priority, "priority", "", "low, medium, high or urgent")
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	cmd.Flags().StringVar(&due, "due", "", "due date (YYYY-MM-DD or RFC 3339)")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func taskShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				task, err := e.GetTask(ctx, userID(), args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(task)
			})
		},
	}
}

func taskTriageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "triage <id>",
		Short: "Classify a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				out, err := e.Triage(ctx, userID(), args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(out.Triage)
			})
		},
	}
}

func taskExecuteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "execute <id>",
		Short: "Run the executor on a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.Execute(ctx, userID(), args[0])
				if err != nil {
					return err
				}
				if err := printJSONOrTable(res); err != nil {
					return err
				}
				if !res.Success {
					return fmt.Errorf("task %s failed: %s", args[0], optional(res.Error))
				}
				return nil
			})
		},
	}
}

func driveCmd() *cobra.Command {
	d := &cobra.Command{Use: "drive", Short: "Browse and import source documents"}
	var folder string
	ls := &cobra.Command{
		Use:   "ls",
		Short: "List documents in a folder",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				files, err := e.ListSourceFiles(ctx, folder)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(files)
				}
				tw := newTable("Name", "Type", "Size", "Modified")
				for _, f := range files {
					tw.AppendRow(table.Row{f.Name, f.MimeType, f.Size, f.ModifiedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	ls.Flags().StringVar(&folder, "folder", "", "folder name")
	_ = ls.MarkFlagRequired("folder")

	var importFolder, file string
	imp := &cobra.Command{
		Use:   "import",
		Short: "Import a task list document and triage its tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.ImportTasks(ctx, userID(), importFolder, file)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				tw := newTable("ID", "Title", "Category", "Priority")
				for _, t := range res.Tasks {
					tw.AppendRow(table.Row{t.ID, t.Title, t.Category, t.Priority})
				}
				tw.AppendFooter(table.Row{"", fmt.Sprintf("%d tasks", res.Summary.Total), fmt.Sprintf("%d need attention", res.Summary.HumanRequired), ""})
				tw.Render()
				return nil
			})
		},
	}
	imp.Flags().StringVar(&importFolder, "folder", "", "folder name")
	imp.Flags().StringVar(&file, "file", "", "document name")
	_ = imp.MarkFlagRequired("folder")
	_ = imp.MarkFlagRequired("file")

	d.AddCommand(ls, imp)
	return d
}

func postsCmd() *cobra.Command {
	p := &cobra.Command{Use: "posts", Short: "Social posts from master documents"}
	p.AddCommand(&cobra.Command{
		Use:   "generate <file-id>",
		Short: "Generate posts for every platform",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.GeneratePosts(ctx, userID(), args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				tw := newTable("Platform", "Status", "Error")
				for _, s := range res.Platforms {
					tw.AppendRow(table.Row{s.Platform, s.Status, s.Error})
				}
				tw.Render()
				return nil
			})
		},
	})
	var platform string
	list := &cobra.Command{
		Use:   "list <file-id>",
		Short: "List posts generated from a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				posts, err := e.ListSocialPosts(ctx, userID(), args[0], platform)
				if err != nil {
					return err
				}
				return printJSONOrTable(posts)
			})
		},
	}
	list.Flags().StringVar(&platform, "platform", "", "platform filter")
	p.AddCommand(list)
	return p
}

func dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show dashboard counters and urgent tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				stats, err := e.DashboardStats(ctx, userID())
				if err != nil {
					return err
				}
				urgent, err := e.UrgentTasks(ctx, userID())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"stats": stats, "urgent": urgent})
				}
				tw := newTable("Metric", "Value")
				tw.AppendRows([]table.Row{
					{"Total tasks", stats.TotalTasks},
					{"Completed today", stats.CompletedToday},
					{"Pending attention", stats.PendingAttention},
					{"Errors", stats.ErrorCount},
					{"Projects", stats.ProjectCount},
					{"Agents", stats.AgentCount},
					{"Unread notifications", stats.UnreadNotifications},
				})
				tw.Render()
				if len(urgent) > 0 {
					ut := newTable("ID", "Title", "Priority", "Due")
					for _, t := range urgent {
						ut.AppendRow(table.Row{t.ID, t.Title, t.Priority, optional(t.DueDate)})
					}
					ut.Render()
				}
				return nil
			})
		},
	}
}

func notificationsCmd() *cobra.Command {
	n := &cobra.Command{Use: "notifications", Short: "Read notifications"}
	var unread bool
	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListNotifications(ctx, userID(), unread, limit)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := newTable("ID", "Type", "Title", "Read", "Created")
				for _, it := range items {
					tw.AppendRow(table.Row{it.ID, it.Type, it.Title, it.IsRead, it.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	list.Flags().BoolVar(&unread, "unread", false, "only unread")
	list.Flags().IntVar(&limit, "limit", 50, "maximum number of notifications")
	readAll := &cobra.Command{
		Use:   "read-all",
		Short: "Mark every notification read",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				updated, err := e.MarkAllNotificationsRead(ctx, userID())
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]int{"updated": updated})
			})
		},
	}
	n.AddCommand(list, readAll)
	return n
}

func teamCmd() *cobra.Command {
	tm := &cobra.Command{Use: "team", Short: "Manage team members"}
	var role string
	invite := &cobra.Command{
		Use:   "invite <email>",
		Short: "Invite a team member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				in := engine.MemberInput{Email: &args[0]}
				if role != "" {
					in.Role = &role
				}
				m, err := e.InviteMember(ctx, userID(), in)
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	invite.Flags().StringVar(&role, "role", "", "member or admin")
	list := &cobra.Command{
		Use:   "list",
		Short: "List team members",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				members, err := e.ListTeam(ctx, userID())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(members)
				}
				tw := newTable("ID", "Email", "Role", "Status", "Invited")
				for _, m := range members {
					tw.AppendRow(table.Row{m.ID, m.Email, m.Role, m.Status, m.InvitedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	remove := &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a team member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.RemoveMember(ctx, userID(), args[0]); err != nil {
					return err
				}
				fmt.Println("removed", args[0])
				return nil
			})
		},
	}
	tm.AddCommand(invite, list, remove)
	return tm
}

func apiKeyCmd() *cobra.Command {
	k := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	var name string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an API key; the key is printed once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				key, plain, err := e.CreateAPIKey(ctx, userID(), name)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"apiKey": key, "key": plain})
			})
		},
	}
	create.Flags().StringVar(&name, "name", "", "label for the key")
	list := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				keys, err := e.ListAPIKeys(ctx, userID())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(keys)
				}
				tw := newTable("ID", "Name", "Created")
				for _, key := range keys {
					tw.AppendRow(table.Row{key.ID, key.Name, key.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	revoke := &cobra.Command{
		Use:   "revoke <id>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.RevokeAPIKey(ctx, userID(), args[0]); err != nil {
					return err
				}
				fmt.Println("revoked", args[0])
				return nil
			})
		},
	}
	k.AddCommand(create, list, revoke)
	return k
}

func tokenCmd() *cobra.Command {
	var ttl time.Duration
	var name string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for --user-id with the configured secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			token, err := auth.IssueToken(cfg.Auth.JWTSecret, userID(), name, ttl, time.Now())
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime (0 for no expiry)")
	cmd.Flags().StringVar(&name, "name", "", "display name claim")
	return cmd
}

// --- helpers ---

func userID() string {
	return strings.TrimSpace(viper.GetString("user-id"))
}

func overrides() app.Overrides {
	return app.Overrides{
		ClassifierAPIKey: viper.GetString("classifier-api-key"),
		ExecutorAPIKey:   viper.GetString("executor-api-key"),
		JWTSecret:        viper.GetString("jwt-secret"),
		DriveAPIKey:      viper.GetString("drive-api-key"),
		SlackWebhookURL:  viper.GetString("slack-webhook-url"),
		LogLevel:         viper.GetString("log-level"),
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOptional(viper.GetString("workspace"))
	if err != nil {
		return nil, err
	}
	overrides().Apply(cfg)
	return cfg, nil
}

func withRuntime(ctx context.Context, fn func(context.Context, *app.Runtime) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := app.NewLogger(cfg.Log.Level)
	if err != nil {
		return err
	}
	rt, err := app.Open(ctx, viper.GetString("workspace"), cfg, log)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(ctx, rt)
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	return withRuntime(ctx, func(ctx context.Context, rt *app.Runtime) error {
		return fn(ctx, rt.Engine)
	})
}

func newTable(header ...any) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row(header))
	return tw
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func optional(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
