package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/al-bashkir/payroll-console/internal/app"
	"github.com/al-bashkir/payroll-console/internal/config"
	"github.com/al-bashkir/payroll-console/internal/router"
	"github.com/al-bashkir/payroll-console/internal/store"
	"github.com/al-bashkir/payroll-console/internal/token"
	"github.com/al-bashkir/payroll-console/internal/views"
)

// Version information (set via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// Global flags
var (
	configFile string
	logLevel   string
	logFormat  string
	noInput    bool
)

// Command flags
var (
	loginUsername      string
	loginPasswordStdin bool
	loginRemember      bool
	logoutForget       bool
	deptDescription    string
	assumeYes          bool
	leaveDate          string
	salaryYear         int
	salaryMonth        int
	salaryDepartment   int
	salaryItemType     string
)

// Exit codes
const (
	ExitSuccess    = 0
	ExitError      = 1
	ExitConfig     = 3
	ExitRedirected = 4 // open landed somewhere other than the requested route
)

// Process streams, swapped by tests.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
	stdin  io.Reader = os.Stdin
)

var rootCmd = &cobra.Command{
	Use:   "payrollctl",
	Short: "Payroll management console",
	Long: `Terminal client for the payroll management API.

The console keeps you signed in between runs. When the access token is
about to expire, or the server rejects it, calls are held while the
console signs in again with the remembered credentials and are then
replayed. Without remembered credentials the session ends and you are
sent back to the sign-in page.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// overrideExitCode is set by subcommands (open, check-config) so main() can
// call os.Exit() after cobra finishes.  This avoids calling os.Exit() inside
// RunE which would bypass deferred functions.  -1 means "use default".
var overrideExitCode = -1

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the payroll API",
	Long: `Sign in and store the access token.

With --password-stdin the password is read from the first line of standard
input. Otherwise an interactive form is shown.`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out",
	Long:  `Drop the access token and cached profile. Remembered credentials are kept unless --forget is given.`,
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

var forgetCmd = &cobra.Command{
	Use:   "forget",
	Short: "Drop remembered credentials",
	Args:  cobra.NoArgs,
	RunE:  runForget,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	Args:  cobra.NoArgs,
	RunE:  runWhoami,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show session and token state",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "List console routes and who may open them",
	Args:  cobra.NoArgs,
	RunE:  runRoutes,
}

var openCmd = &cobra.Command{
	Use:   "open <path>",
	Short: "Open a console page",
	Long: `Open a console page such as /dashboard or /salary/list.

The route guard may send you elsewhere: to /login when you are not signed
in, or to a page your role may open.

Exit codes:
  0 = Requested page shown
  1 = Error
  4 = Redirected to another page`,
	Args: cobra.ExactArgs(1),
	RunE: runOpen,
}

var departmentCmd = &cobra.Command{
	Use:   "department",
	Short: "Manage departments",
}

var departmentAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a department",
	Args:  cobra.ExactArgs(1),
	RunE:  runDepartmentAdd,
}

var departmentDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a department without employees",
	Args:  cobra.ExactArgs(1),
	RunE:  runDepartmentDelete,
}

var employeeCmd = &cobra.Command{
	Use:   "employee",
	Short: "Manage employees",
}

var employeeLeaveCmd = &cobra.Command{
	Use:   "leave <id>",
	Short: "Record that an employee left",
	Args:  cobra.ExactArgs(1),
	RunE:  runEmployeeLeave,
}

var salaryCmd = &cobra.Command{
	Use:   "salary",
	Short: "Manage salary items, configurations and monthly generation",
}

var salaryGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Create draft salary records for a month",
	Long: `Create draft salary records for every active employee, or for one
department, that has no record for the month yet.`,
	Args: cobra.NoArgs,
	RunE: runSalaryGenerate,
}

var salaryItemsCmd = &cobra.Command{
	Use:   "items",
	Short: "List salary items",
	Args:  cobra.NoArgs,
	RunE:  runSalaryItems,
}

var salaryConfigCmd = &cobra.Command{
	Use:   "config <employee-id>",
	Short: "Show the salary items configured for an employee",
	Args:  cobra.ExactArgs(1),
	RunE:  runSalaryConfig,
}

var mockServerCmd = &cobra.Command{
	Use:   "mock-server",
	Short: "Run a local stub of the payroll API",
	Long: `Serve an in-memory payroll API for development.

Seeded accounts: admin/admin123, hr/hr123456, manager/manager123 and
employee/employee123.`,
	Args: cobra.NoArgs,
	RunE: runMockServer,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display version information",
	Long:  `Display version, commit hash, and build date.`,
	Run:   runVersion,
}

var checkConfigCmd = &cobra.Command{
	Use:   "check-config",
	Short: "Validate configuration file",
	Long: `Load and validate the configuration file.

Exit codes:
  0 = Configuration is valid
  3 = Configuration error`,
	RunE: runCheckConfig,
}

func init() {
	// Global flags (available to all commands)
	rootCmd.PersistentFlags().StringVar(&configFile, "config", config.DefaultPath(),
		"Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level (debug, info, warn, error) - overrides config file")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Log format (json, text) - overrides config file")
	rootCmd.PersistentFlags().BoolVar(&noInput, "no-input", false,
		"Never show interactive forms")

	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "Username")
	loginCmd.Flags().BoolVar(&loginPasswordStdin, "password-stdin", false, "Read the password from stdin")
	loginCmd.Flags().BoolVar(&loginRemember, "remember", false, "Remember the credentials for automatic re-login")
	logoutCmd.Flags().BoolVar(&logoutForget, "forget", false, "Also drop remembered credentials")
	departmentAddCmd.Flags().StringVar(&deptDescription, "description", "", "Department description")
	departmentDeleteCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation")
	employeeLeaveCmd.Flags().StringVar(&leaveDate, "date", "", "Leave date (YYYY-MM-DD), defaults to today")

	departmentCmd.AddCommand(departmentAddCmd, departmentDeleteCmd)
	employeeCmd.AddCommand(employeeLeaveCmd)

	now := time.Now()
	salaryGenerateCmd.Flags().IntVar(&salaryYear, "year", now.Year(), "Year")
	salaryGenerateCmd.Flags().IntVar(&salaryMonth, "month", int(now.Month()), "Month (1-12)")
	salaryGenerateCmd.Flags().IntVar(&salaryDepartment, "department", 0, "Only this department")
	salaryItemsCmd.Flags().StringVar(&salaryItemType, "type", "", "Only items of this type (addition, deduction)")
	salaryCmd.AddCommand(salaryGenerateCmd, salaryItemsCmd, salaryConfigCmd)

	// Add subcommands
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(forgetCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(routesCmd)
	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(departmentCmd)
	rootCmd.AddCommand(employeeCmd)
	rootCmd.AddCommand(salaryCmd)
	rootCmd.AddCommand(mockServerCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(checkConfigCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitError)
	}

	// If a subcommand set a specific exit code, use it.
	// This is done outside RunE so deferred functions run properly.
	if overrideExitCode >= 0 {
		os.Exit(overrideExitCode)
	}
}

// loadConfig reads the config file, applies flag overrides and sets up
// logging. A missing file means defaults.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOptional(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// Override log settings from flags if provided
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}

	// Initialize structured logging based on config
	config.SetupLogging(&cfg.Log)
	return cfg, nil
}

func withApp(fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg, app.Options{
		Out:         stdout,
		Err:         stderr,
		Interactive: !noInput,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Warn("failed to close state store", "error", err)
		}
	}()
	return fn(ctx, a)
}

// runLogin signs in from flags or through the login page
func runLogin(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app.App) error {
		if !loginPasswordStdin {
			if noInput {
				return fmt.Errorf("--password-stdin is required with --no-input")
			}
			_, err := a.Open(ctx, router.LoginPath)
			return err
		}

		username := strings.TrimSpace(loginUsername)
		if username == "" {
			username = a.Session.RememberedUsername()
		}
		if username == "" {
			return errors.New("--username is required")
		}
		password, err := readPassword(stdin)
		if err != nil {
			return err
		}

		profile, err := a.Stores.Auth.Login(ctx, username, password, loginRemember)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Signed in as %s (%s)\n", profile.DisplayName(), profile.Role)
		return nil
	})
}

func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("empty password on stdin")
	}
	return line, nil
}

// runLogout ends the session
func runLogout(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app.App) error {
		if err := a.Stores.Auth.Logout(ctx); err != nil {
			return err
		}
		if logoutForget {
			if err := a.Stores.Auth.Forget(ctx); err != nil {
				return err
			}
		}
		fmt.Fprintln(stdout, "Signed out")
		return nil
	})
}

// runForget drops remembered credentials
func runForget(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app.App) error {
		if err := a.Stores.Auth.Forget(ctx); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "Remembered credentials removed")
		return nil
	})
}

// runWhoami fetches the current user
func runWhoami(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app.App) error {
		if !a.Session.Authenticated() {
			return errors.New("not signed in")
		}
		p, err := a.Stores.Auth.Me(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%s (%s)\n", p.DisplayName(), p.Role)
		return nil
	})
}

// runStatus prints the stored session without calling the API
func runStatus(cmd *cobra.Command, args []string) error {
	return withApp(func(_ context.Context, a *app.App) error {
		snap := a.Session.Snapshot()
		insp := a.Client.Inspector()

		fmt.Fprintf(stdout, "Signed in:          %v\n", snap.Token != "")
		if snap.Token != "" {
			if sub, ok := token.Subject(snap.Token); ok {
				fmt.Fprintf(stdout, "Token subject:      %s\n", sub)
			}
			if exp, ok := token.ExpiresAt(snap.Token); ok {
				fmt.Fprintf(stdout, "Token expires:      %s\n", exp.Local().Format(time.RFC3339))
			} else {
				fmt.Fprintln(stdout, "Token expires:      unknown")
			}
			if insp.Expired(snap.Token) {
				fmt.Fprintln(stdout, "Token state:        expiring, will re-authenticate on next call")
			} else {
				fmt.Fprintf(stdout, "Token state:        valid for %s\n", insp.Remaining(snap.Token).Round(time.Second))
			}
		}
		if snap.Profile != nil {
			fmt.Fprintf(stdout, "User:               %s (%s)\n", snap.Profile.DisplayName(), snap.Profile.Role)
		}
		if snap.Username != "" {
			fmt.Fprintf(stdout, "Remembered user:    %s (password stored: %v)\n", snap.Username, snap.HasPassword)
		}
		return nil
	})
}

// runRoutes lists the route table
func runRoutes(cmd *cobra.Command, args []string) error {
	return withApp(func(_ context.Context, a *app.App) error {
		for _, r := range a.Navigator.Table().Routes() {
			switch {
			case r.Redirect != "":
				fmt.Fprintf(stdout, "%-28s -> %s\n", r.Path, r.Redirect)
			case !r.RequiresAuth:
				fmt.Fprintf(stdout, "%-28s public\n", r.Path)
			case len(r.AllowedRoles) == 0:
				fmt.Fprintf(stdout, "%-28s any role\n", r.Path)
			default:
				roles := make([]string, 0, len(r.AllowedRoles))
				for _, role := range r.AllowedRoles {
					roles = append(roles, string(role))
				}
				fmt.Fprintf(stdout, "%-28s %s\n", r.Path, strings.Join(roles, ", "))
			}
		}
		return nil
	})
}

// runOpen renders a route
func runOpen(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app.App) error {
		res, err := a.Open(ctx, args[0])
		if err != nil {
			return err
		}
		if res.Redirected {
			// exit code handled via overrideExitCode
			overrideExitCode = ExitRedirected
		}
		return nil
	})
}

// runDepartmentAdd creates a department
func runDepartmentAdd(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app.App) error {
		d, err := a.Stores.Departments.Create(ctx, store.DepartmentInput{
			Name:        strings.TrimSpace(args[0]),
			Description: deptDescription,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Created department %d: %s\n", d.ID, d.Name)
		return nil
	})
}

// runDepartmentDelete deletes a department after confirmation
func runDepartmentDelete(cmd *cobra.Command, args []string) error {
	id, err := strconv.Atoi(args[0])
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid department id %q", args[0])
	}

	return withApp(func(ctx context.Context, a *app.App) error {
		if !assumeYes {
			if noInput {
				return errors.New("--yes is required with --no-input")
			}
			ok, err := views.HuhPrompter{}.Confirm(fmt.Sprintf("Delete department %d?", id))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(stdout, "Cancelled")
				return nil
			}
		}
		if err := a.Stores.Departments.Delete(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Deleted department %d\n", id)
		return nil
	})
}

// runEmployeeLeave marks an employee as left
func runEmployeeLeave(cmd *cobra.Command, args []string) error {
	id, err := strconv.Atoi(args[0])
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid employee id %q", args[0])
	}
	date := leaveDate
	if date == "" {
		date = time.Now().Format(time.DateOnly)
	}
	if _, err := time.Parse(time.DateOnly, date); err != nil {
		return fmt.Errorf("invalid leave date %q: want YYYY-MM-DD", date)
	}

	return withApp(func(ctx context.Context, a *app.App) error {
		e, err := a.Stores.Employees.Leave(ctx, id, date)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%s left on %s\n", e.Name, date)
		return nil
	})
}

// runSalaryGenerate creates draft records for a month
func runSalaryGenerate(cmd *cobra.Command, args []string) error {
	if salaryMonth < 1 || salaryMonth > 12 {
		return fmt.Errorf("invalid month %d", salaryMonth)
	}
	req := store.SalaryGenerateRequest{Year: salaryYear, Month: salaryMonth}
	if salaryDepartment > 0 {
		req.DepartmentID = &salaryDepartment
	}

	return withApp(func(ctx context.Context, a *app.App) error {
		res, err := a.Stores.SalaryConfig.Generate(ctx, req)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, res.Message)
		for _, e := range res.Errors {
			fmt.Fprintf(stdout, "  %s\n", e)
		}
		return nil
	})
}

// runSalaryItems lists the salary item catalogue
func runSalaryItems(cmd *cobra.Command, args []string) error {
	switch salaryItemType {
	case "", store.SalaryItemAddition, store.SalaryItemDeduction:
	default:
		return fmt.Errorf("invalid item type %q", salaryItemType)
	}

	return withApp(func(ctx context.Context, a *app.App) error {
		var (
			items []store.SalaryItem
			err   error
		)
		if salaryItemType == "" {
			items, err = a.Stores.SalaryItems.List(ctx, nil)
		} else {
			items, err = a.Stores.SalaryItems.ByType(ctx, salaryItemType)
		}
		if err != nil {
			return err
		}
		for _, it := range items {
			kind := "fixed"
			if it.IsPercentage {
				kind = "percent"
			}
			fmt.Fprintf(stdout, "%-4d %-24s %-10s %s\n", it.ID, it.Name, it.Type, kind)
		}
		return nil
	})
}

// runSalaryConfig shows the configured items of an employee
func runSalaryConfig(cmd *cobra.Command, args []string) error {
	id, err := strconv.Atoi(args[0])
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid employee id %q", args[0])
	}

	return withApp(func(ctx context.Context, a *app.App) error {
		cfg, err := a.Stores.SalaryConfig.Get(ctx, id)
		if err != nil {
			return err
		}
		if len(cfg.Items) == 0 {
			fmt.Fprintf(stdout, "No salary items configured for employee %d\n", id)
			return nil
		}
		for _, it := range cfg.Items {
			value := strconv.FormatFloat(it.Value, 'f', 2, 64)
			if it.IsPercentage {
				value += "%"
			}
			fmt.Fprintf(stdout, "%-24s %-10s %10s  from %s\n", it.ItemName, it.Type, value, it.EffectiveDate)
		}
		return nil
	})
}

// runMockServer serves the stub API
func runMockServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		return err
	}

	gin.SetMode(gin.ReleaseMode)

	slog.Info("starting payroll mock API",
		"version", version,
		"commit", commit,
		"build_date", buildDate,
		"config", configFile,
	)

	return app.RunMock(cfg)
}

// runVersion displays version information
func runVersion(cmd *cobra.Command, args []string) {
	fmt.Fprintf(stdout, "payrollctl version %s\n", version)
	fmt.Fprintf(stdout, "  Commit:     %s\n", commit)
	fmt.Fprintf(stdout, "  Build date: %s\n", buildDate)
	fmt.Fprintf(stdout, "  Go version: %s\n", getGoVersion())
}

// runCheckConfig validates the configuration
func runCheckConfig(cmd *cobra.Command, args []string) error {
	fmt.Fprintf(stdout, "Checking configuration: %s\n\n", configFile)

	// Load configuration
	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(stderr, "❌ Configuration validation failed:\n")
		fmt.Fprintf(stderr, "   %v\n", err)
		overrideExitCode = ExitConfig
		return nil // exit code handled via overrideExitCode
	}

	// Print configuration summary (with secrets redacted)
	cfg = cfg.Redact()
	fmt.Fprintln(stdout, "✅ Configuration is valid")
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, "Configuration summary:")
	fmt.Fprintf(stdout, "  API base URL:     %s\n", cfg.API.BaseURL)
	fmt.Fprintf(stdout, "  Login path:       %s\n", cfg.API.LoginPath)
	fmt.Fprintf(stdout, "  Request timeout:  %d seconds\n", cfg.API.Timeout)
	fmt.Fprintf(stdout, "  Expiry lookahead: %d seconds\n", cfg.Auth.ExpiryLookahead)
	fmt.Fprintf(stdout, "  Recovery timeout: %d seconds\n", cfg.Recovery.Timeout)
	fmt.Fprintf(stdout, "  Storage driver:   %s\n", cfg.Storage.Driver)
	switch cfg.Storage.Driver {
	case "file":
		fmt.Fprintf(stdout, "  State file:       %s\n", cfg.Storage.Path)
	case "redis":
		fmt.Fprintf(stdout, "  Redis address:    %s\n", cfg.Storage.Redis.Addr)
		fmt.Fprintf(stdout, "  Redis password:   %s\n", orUnset(cfg.Storage.Redis.Password))
	}
	fmt.Fprintf(stdout, "  Log Level:        %s\n", cfg.Log.Level)
	fmt.Fprintf(stdout, "  Log Format:       %s\n", cfg.Log.Format)

	return nil
}

func orUnset(s string) string {
	if s == "" {
		return "[NOT SET]"
	}
	return s
}

// getGoVersion returns the Go version used to build the binary
func getGoVersion() string {
	return runtime.Version()
}
