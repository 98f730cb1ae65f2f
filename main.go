// strkit is an iOS string-table manager with Google Cloud translation.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/appfactor/strkit/csvexport"
	"github.com/appfactor/strkit/diffreport"
	"github.com/appfactor/strkit/extract"
	"github.com/appfactor/strkit/gcloud"
	"github.com/appfactor/strkit/i18n"
	"github.com/appfactor/strkit/langmeta"
	"github.com/appfactor/strkit/lockfile"
	"github.com/appfactor/strkit/merge"
	"github.com/appfactor/strkit/project"
	"github.com/appfactor/strkit/stringtable"
	"github.com/appfactor/strkit/translate"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ANSI colors
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
	colorBlue   = "\033[0;34m"
)

func logInfo(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorBlue+"[INFO]"+colorReset+" "+format+"\n", args...)
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorGreen+"[OK]"+colorReset+" "+format+"\n", args...)
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorYellow+"[WARN]"+colorReset+" "+format+"\n", args...)
}

func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorRed+"[ERROR]"+colorReset+" "+format+"\n", args...)
}

// ---------------------------------------------------------------------------
// Global flag
// ---------------------------------------------------------------------------

var rootDir string

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "strkit",
		Short: "iOS string-table manager with Google Cloud translation",
		Long: `strkit is an iOS Localizable.strings manager with Google Cloud translation.

Discovers the .lproj locale folders of an Xcode project, extracts
translatable strings from Swift and Objective-C sources, and translates
the master table into every configured language through the Cloud
Translation API. Format placeholders (%@, %d) are protected during
translation and restored afterwards.

Commands:
  status      Show project info and per-language statistics
  init        Extract master strings and sync locale tables
  translate   Translate locale tables via Cloud Translation
  export      Export string tables to a delimited file (RDBMS upload)
  deploy      Write tables from an export file into the app folder
  report      Diff a previous locale tree against the current one
  auth        Show or acquire the Cloud Translation access token`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global persistent flag, inherited by all subcommands
	root.PersistentFlags().StringVar(&rootDir, "root", ".", "Project root directory")

	root.AddCommand(
		newStatusCmd(),
		newInitCmd(),
		newTranslateCmd(),
		newExportCmd(),
		newDeployCmd(),
		newReportCmd(),
		newAuthCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	i18n.Init("")

	if err := newRootCmd().Execute(); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// version (display version information)
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display version, commit hash, and build date.`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("strkit version %s\n", version)
			fmt.Printf("  commit:    %s\n", commit)
			fmt.Printf("  built:     %s\n", date)
		},
	}
}

// ---------------------------------------------------------------------------
// status (read-only: project info + table statistics)
// ---------------------------------------------------------------------------

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show project info and per-language statistics",
		Long: `Show the detected locale tree and per-language table statistics.

Displays the master table, detected languages, and how many keys each
locale table covers. Does not modify any files.`,
		Run: func(cmd *cobra.Command, args []string) {
			runStatus()
		},
	}
}

func runStatus() {
	proj := detectProject()

	fmt.Fprintf(os.Stderr, "\n%sProject%s\n", colorBlue, colorReset)
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))

	fmt.Fprintf(os.Stderr, "  "+i18n.T("Project: %s")+"\n", proj.Name)
	fmt.Fprintf(os.Stderr, "  Root:        %s\n", proj.Root)
	if proj.AppDir != proj.Root {
		fmt.Fprintf(os.Stderr, "  App dir:     %s\n", proj.AppDir)
	}
	fmt.Fprintf(os.Stderr, "  Table file:  %s\n", proj.StringsFile)
	fmt.Fprintf(os.Stderr, "  Source lang: %s\n", proj.SourceLang)

	for _, w := range proj.Warnings {
		logWarning("%s", w)
	}

	fmt.Fprintln(os.Stderr)

	if len(proj.Languages) == 0 {
		logInfo(i18n.T("No languages configured or detected"))
	} else {
		fmt.Fprintf(os.Stderr, "  "+i18n.T("Languages: %s")+"\n", strings.Join(proj.Languages, ", "))
	}
	fmt.Fprintln(os.Stderr)

	master, err := stringtable.ParseFile(proj.MasterPath(), proj.ParseOptions())
	if err != nil {
		logInfo("No master table found at %s. Run 'strkit init' to extract strings.", proj.MasterPath())
		printSuggestedCommands()
		return
	}

	total := len(master.Records)
	_, commented := master.Stats()
	fmt.Fprintf(os.Stderr, "%sTranslation Statistics%s\n", colorBlue, colorReset)
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
	fmt.Fprintf(os.Stderr, "  Master keys: %d (%d with comments)\n\n", total, commented)

	width := langColumnWidth(proj.Languages)
	for _, lang := range proj.Languages {
		table, err := stringtable.ParseFile(proj.StringsPath(lang), proj.ParseOptions())
		if err != nil {
			fmt.Fprintf(os.Stderr, "  %s  %smissing%s\n", langCell(lang, width), colorRed, colorReset)
			continue
		}
		missing := len(merge.Untranslated(table, master))
		percent := 100
		if total > 0 {
			percent = (total - missing) * 100 / total
		}
		fmt.Fprintf(os.Stderr, "  %s  %s", langCell(lang, width), progressBar(percent, 20))
		if missing > 0 {
			fmt.Fprintf(os.Stderr, "  (%d untranslated)", missing)
		}
		fmt.Fprintln(os.Stderr)
	}

	if lock, err := lockfile.Load(proj.Root); err == nil {
		if langs, _ := lock.Stats(); langs > 0 {
			fmt.Fprintf(os.Stderr, "\n  Lock file:   %s\n", lock.Summary())
		}
	}

	fmt.Fprintln(os.Stderr)
	printSuggestedCommands()
}

func printSuggestedCommands() {
	fmt.Fprintf(os.Stderr, "%sSuggested Commands%s\n", colorBlue, colorReset)
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
	fmt.Fprintln(os.Stderr)
	fmt.Fprintf(os.Stderr, "  # Extract strings and sync locale tables\n")
	fmt.Fprintf(os.Stderr, "  strkit init\n\n")
	fmt.Fprintf(os.Stderr, "  # Translate all languages with changed or missing keys\n")
	fmt.Fprintf(os.Stderr, "  strkit translate --incremental\n\n")
	fmt.Fprintf(os.Stderr, "  # Translate specific languages\n")
	fmt.Fprintf(os.Stderr, "  strkit translate --lang de,fr\n\n")
}

// progressBar renders a fixed-width colored bar for a percentage.
func progressBar(percent, width int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	color := colorGreen
	if percent < 50 {
		color = colorRed
	} else if percent < 100 {
		color = colorYellow
	}

	filled := percent * width / 100
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return fmt.Sprintf("%s%s%s %3d%%", color, bar, colorReset, percent)
}

// flagFromRegion converts a two-letter region code to its flag emoji.
func flagFromRegion(region string) string {
	if len(region) != 2 {
		return ""
	}
	var flag []rune
	for i := 0; i < 2; i++ {
		c := region[i]
		switch {
		case c >= 'a' && c <= 'z':
			c -= 'a' - 'A'
		case c >= 'A' && c <= 'Z':
		default:
			return ""
		}
		flag = append(flag, 0x1F1E6+rune(c-'A'))
	}
	return string(flag)
}

// langFlag returns a flag emoji for a locale identifier: the registry
// entry when known, otherwise derived from the region subtag.
func langFlag(lang string) string {
	if meta := langmeta.Resolve(lang); meta.Flag != "" {
		return meta.Flag
	}
	for _, part := range strings.Split(lang, "-")[1:] {
		if f := flagFromRegion(part); f != "" {
			return f
		}
	}
	return ""
}

func langColumnWidth(langs []string) int {
	width := 0
	for _, lang := range langs {
		if len(lang) > width {
			width = len(lang)
		}
	}
	return width
}

func langCell(lang string, width int) string {
	flag := langFlag(lang)
	if flag == "" {
		flag = "  "
	}
	return fmt.Sprintf("%s %-*s", flag, width, lang)
}

// ---------------------------------------------------------------------------
// init (extract strings + sync locale tables)
// ---------------------------------------------------------------------------

func newInitCmd() *cobra.Command {
	var (
		srcDirs string
		langs   string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Extract master strings and sync locale tables",
		Long: `Extract translatable strings and create/update locale tables.

Scans Swift and Objective-C sources for NSLocalizedString calls (using
genstrings when available), regenerates the master table, then merges
the master keys into every locale table. Existing translations are
preserved; keys removed from the sources are dropped.

This command is idempotent, safe to run multiple times.`,
		Run: func(cmd *cobra.Command, args []string) {
			proj := detectProject()

			if srcDirs != "" {
				proj.SourceDirs = strings.Split(srcDirs, ",")
			}
			if langs != "" {
				proj.Languages = strings.Split(langs, ",")
			}

			runInit(proj)
		},
	}

	cmd.Flags().StringVar(&srcDirs, "src", "", "Source directories to scan (comma-separated)")
	cmd.Flags().StringVar(&langs, "lang", "", "Languages to sync (comma-separated)")
	_ = cmd.Flags().MarkHidden("src")

	return cmd
}

func runInit(proj *project.Project) {
	logInfo("Initializing string tables for %s...", proj.Name)

	master, err := doExtract(proj)
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}

	masterPath := proj.MasterPath()
	if err := os.MkdirAll(filepath.Dir(masterPath), 0755); err != nil {
		logError("Creating master directory: %v", err)
		os.Exit(1)
	}
	if err := master.WriteFile(masterPath); err != nil {
		logError("Writing %s: %v", masterPath, err)
		os.Exit(1)
	}
	logSuccess("Master table: %s (%d keys)", masterPath, len(master.Records))

	if len(proj.Languages) == 0 {
		logWarning(i18n.T("No languages configured or detected"))
		logInfo("Add .lproj folders or declare languages in %s", project.ConfigFileName)
		return
	}

	logInfo("Syncing locale tables for: %s", strings.Join(proj.Languages, ", "))

	created, updated := 0, 0
	for _, lang := range proj.Languages {
		path := proj.StringsPath(lang)

		existing, err := stringtable.ParseFile(path, proj.ParseOptions())
		isNew := false
		if err != nil {
			if !os.IsNotExist(err) {
				logError("Reading %s: %v", path, err)
				continue
			}
			existing = stringtable.NewFile()
			isNew = true
		}

		merged, stats := merge.Merge(existing, master)

		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			logError("Creating directory for %s: %v", path, err)
			continue
		}
		if err := merged.WriteFile(path); err != nil {
			logError("Writing %s: %v", path, err)
			continue
		}

		if isNew {
			logSuccess("Created: %s (%d keys)", path, stats.Added)
			created++
		} else {
			logSuccess("Updated: %s (+%d new, %d kept, %d removed)",
				path, stats.Added, stats.Kept, stats.Removed)
			updated++
		}
	}

	logInfo("Summary: %d created, %d updated", created, updated)
	logSuccess("Init complete!")
}

// doExtract regenerates the master table from the project sources. It
// prefers genstrings when installed, falling back to the built-in
// NSLocalizedString scanner.
func doExtract(proj *project.Project) (*stringtable.File, error) {
	logInfo("Scanning for source files in: %s", strings.Join(proj.SourceDirs, ", "))

	files, err := extract.FindSources(proj.SourceDirs)
	if err != nil {
		return nil, fmt.Errorf("scanning sources: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no source files found (supported: .swift, .m, .mm, .h)")
	}

	logInfo(i18n.N("Found %d source file", "Found %d source files", len(files))+" (%s)",
		len(files), extract.DescribeFiles(files))

	if _, err := exec.LookPath("genstrings"); err == nil {
		tempDir, err := os.MkdirTemp("", "strkit-genstrings-")
		if err != nil {
			return nil, err
		}
		defer os.RemoveAll(tempDir)

		result, err := extract.RunGenstrings(files, tempDir)
		if err != nil {
			return nil, fmt.Errorf("genstrings failed: %w", err)
		}
		master, err := stringtable.ParseFile(result.StringsFile, proj.ParseOptions())
		if err != nil {
			return nil, fmt.Errorf("parsing genstrings output: %w", err)
		}
		return master, nil
	}

	logInfo("genstrings not found, using built-in scanner")
	master, warnings := extract.Scan(files)
	for _, w := range warnings {
		logWarning("%s", w)
	}
	return master, nil
}

// ---------------------------------------------------------------------------
// translate
// ---------------------------------------------------------------------------

func newTranslateCmd() *cobra.Command {
	var (
		langs       string
		source      string
		duplicates  string
		token       string
		dryRun      bool
		incremental bool
		retranslate bool
		timeout     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Translate locale tables via Cloud Translation",
		Long: `Translate the master table into every configured language.

Each language is processed in sequence and written only after its whole
batch translated cleanly, so one language's failure never corrupts
another's table. Keys already present in a locale table are skipped
unless --retranslate is given; --incremental additionally re-translates
keys whose master text changed since the last run (tracked in ` + lockfile.LockFileName + `).

Authentication uses the ` + gcloud.TokenEnvVar + ` environment variable when
set, otherwise the gcloud CLI. When a fresh token has to be acquired
mid-run, the run stops so it can be repeated with the new token.

Examples:
  # Translate everything that is missing
  strkit translate

  # Only changed and missing keys, specific languages
  strkit translate --incremental --lang de,fr

  # Show what would be translated
  strkit translate --dry-run`,
		Run: func(cmd *cobra.Command, args []string) {
			runTranslate(translateArgs{
				langs: langs, source: source, duplicates: duplicates,
				token: token, dryRun: dryRun, incremental: incremental,
				retranslate: retranslate, timeout: timeout,
			})
		},
	}

	cmd.Flags().StringVar(&langs, "lang", "", "Languages to translate (comma-separated, default: all)")
	cmd.Flags().StringVar(&source, "source", "", "Master language code (default: detected)")
	cmd.Flags().StringVar(&duplicates, "duplicates", "", "Duplicate key policy: last or error")
	cmd.Flags().StringVar(&token, "token", "", "Access token (default: "+gcloud.TokenEnvVar+" or gcloud CLI)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be translated without calling the API")
	cmd.Flags().BoolVar(&incremental, "incremental", false, "Re-translate keys whose master text changed")
	cmd.Flags().BoolVar(&retranslate, "retranslate", false, "Re-translate all keys, overwriting existing translations")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "API request timeout (0 = default)")

	return cmd
}

type translateArgs struct {
	langs, source, duplicates, token string
	dryRun, incremental, retranslate bool
	timeout                          time.Duration
}

func runTranslate(a translateArgs) {
	proj := detectProject()

	if a.source != "" {
		proj.SourceLang = a.source
	}
	if a.duplicates != "" {
		switch a.duplicates {
		case "last":
			proj.Duplicates = stringtable.DuplicateKeepLast
		case "error":
			proj.Duplicates = stringtable.DuplicateError
		default:
			logError("Invalid --duplicates value %q (use: last, error)", a.duplicates)
			os.Exit(1)
		}
	}

	// Determine target languages
	var targetLangs []string
	if a.langs != "" {
		targetLangs = intersectLanguages(proj.Languages, strings.Split(a.langs, ","))
		if len(targetLangs) == 0 {
			logError("None of the requested languages are configured. Detected: %s",
				strings.Join(proj.Languages, ", "))
			os.Exit(1)
		}
	} else {
		targetLangs = proj.Languages
	}
	targetLangs = filterOutLang(targetLangs, proj.SourceLang)

	if len(targetLangs) == 0 {
		logError(i18n.T("No languages configured or detected"))
		logInfo("Add .lproj folders, declare languages in %s, or pass --lang", project.ConfigFileName)
		os.Exit(1)
	}

	master, err := stringtable.ParseFile(proj.MasterPath(), proj.ParseOptions())
	if err != nil {
		logError("Reading master table: %v", err)
		logInfo("Run 'strkit init' to extract the master table first")
		os.Exit(1)
	}
	if len(master.Records) == 0 {
		logInfo("Master table is empty, nothing to translate")
		return
	}

	lock, err := lockfile.Load(proj.Root)
	if err != nil {
		logWarning("Cannot read %s, incremental tracking disabled: %v", lockfile.LockFileName, err)
		lock = nil
	}
	if a.incremental && lock == nil {
		logError("--incremental requires a readable %s", lockfile.LockFileName)
		os.Exit(1)
	}

	logInfo("Source: %s, %d keys", proj.SourceLang, len(master.Records))
	logInfo("Translating: %s", strings.Join(targetLangs, ", "))

	if a.dryRun {
		for _, lang := range targetLangs {
			pending := pendingCount(master, proj, lang, lock, a)
			meta := langmeta.Resolve(lang)
			name := meta.Name
			if name == "" {
				name = lang
			}
			logInfo("%s (%s): %d strings to translate", lang, name, pending)
		}
		return
	}

	// Setup signal handling for graceful cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		logWarning("Interrupted, finishing current language...")
		cancel()
	}()

	client := newTranslateClient(a.token, a.timeout)

	var tasks []translate.Task
	for _, lang := range targetLangs {
		tasks = append(tasks, translate.Task{Lang: lang, Path: proj.StringsPath(lang)})
	}

	bar := progressbar.NewOptions(len(tasks),
		progressbar.OptionSetDescription("Translating"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	opts := translate.Options{
		Translator:   client,
		SourceLang:   proj.SourceLang,
		Retranslate:  a.retranslate,
		Incremental:  a.incremental,
		Lock:         lock,
		ParseOptions: proj.ParseOptions(),
		OnProgress: func(lang string, done, total int) {
			_ = bar.Set(done)
		},
		OnLog: func(format string, args ...any) {
			logInfo(format, args...)
		},
		OnError: func(format string, args ...any) {
			logError(format, args...)
		},
	}

	outcomes, runErr := translate.Run(ctx, master.Records, tasks, opts)
	_ = bar.Finish()

	if lock != nil {
		if err := lock.Save(); err != nil {
			logWarning("Cannot write %s: %v", lockfile.LockFileName, err)
		}
	}

	printOutcomes(outcomes)

	switch {
	case errors.Is(runErr, gcloud.ErrTokenRefreshed):
		logWarning("A fresh access token was acquired. Run the command again to continue.")
		os.Exit(1)
	case runErr != nil && ctx.Err() != nil:
		logWarning("Translation interrupted, completed languages were saved")
		os.Exit(1)
	case runErr != nil:
		logError("Translation failed: %v", runErr)
		os.Exit(1)
	}

	failed := 0
	translated := 0
	for _, out := range outcomes {
		if out.Failed() {
			failed++
		}
		translated += out.Translated
	}
	if failed > 0 {
		logError(i18n.N("%d language failed", "%d languages failed", failed), failed)
		os.Exit(1)
	}
	if translated == 0 {
		logSuccess(i18n.T("All languages up to date"))
		return
	}
	logSuccess("Translation complete!")
}

// newTranslateClient builds the API client: an explicit token wins,
// otherwise the session falls back to the environment and the gcloud CLI.
func newTranslateClient(token string, timeout time.Duration) *gcloud.Client {
	var source gcloud.TokenSource
	if token != "" {
		source = gcloud.StaticTokenSource(token)
	} else {
		source = &gcloud.CLITokenSource{}
	}
	client := gcloud.NewClient(gcloud.NewSession(source))
	if timeout > 0 {
		client.HTTPClient = &http.Client{Timeout: timeout}
	}
	return client
}

// pendingCount estimates how many keys a translate run would submit for
// one language, mirroring the selection the run itself performs.
func pendingCount(master *stringtable.File, proj *project.Project, lang string, lock *lockfile.LockFile, a translateArgs) int {
	if a.retranslate {
		return len(master.Records)
	}
	existing, err := stringtable.ParseFile(proj.StringsPath(lang), proj.ParseOptions())
	if err != nil {
		return len(master.Records)
	}
	pending := 0
	for _, rec := range master.Records {
		if _, ok := existing.Get(rec.Key); !ok {
			pending++
			continue
		}
		if a.incremental && lock != nil &&
			lock.IsChanged(lang, rec.Key, lockfile.EntryContent(rec.Key, rec.Value)) {
			pending++
		}
	}
	return pending
}

func printOutcomes(outcomes []translate.Outcome) {
	for _, out := range outcomes {
		if out.Failed() {
			logError("%s: %v", out.Lang, out.Err)
			continue
		}
		if out.Translated == 0 {
			logInfo("%s: up to date (%d keys)", out.Lang, out.Skipped)
			continue
		}
		logSuccess("%s: %d translated, %d skipped", out.Lang, out.Translated, out.Skipped)
	}
}

// ---------------------------------------------------------------------------
// export (string tables -> delimited file)
// ---------------------------------------------------------------------------

func newExportCmd() *cobra.Command {
	var (
		output string
		all    bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export string tables to a delimited file",
		Long: `Export string tables to a delimited text file, one line per record
per locale, for loading into an RDBMS table.

By default only the master table is exported. With --all, every locale
table follows, which picks up manually maintained translations.`,
		Run: func(cmd *cobra.Command, args []string) {
			proj := detectProject()

			n, err := csvexport.Export(proj, output, csvexport.Options{
				AllLanguages: all,
				OnLog: func(format string, args ...any) {
					logInfo(format, args...)
				},
			})
			if err != nil {
				logError("Export failed: %v", err)
				os.Exit(1)
			}
			logSuccess("Exported %d records to %s", n, output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "O", "strings.csv", "Output file path")
	cmd.Flags().BoolVar(&all, "all", false, "Include every locale table, not just the master")

	return cmd
}

// ---------------------------------------------------------------------------
// deploy (delimited file -> app folder tables)
// ---------------------------------------------------------------------------

func newDeployCmd() *cobra.Command {
	var csvPath string

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Write tables from an export file into the app folder",
		Long: `Write the string tables contained in an export file into the app
folder, one Localizable.strings per language.

Languages are deployed one at a time; a failure for one language is
reported but does not stop the others.`,
		Run: func(cmd *cobra.Command, args []string) {
			runDeploy(csvPath)
		},
	}

	cmd.Flags().StringVar(&csvPath, "csv", "", "Export file to deploy (required)")
	_ = cmd.MarkFlagRequired("csv")

	return cmd
}

func runDeploy(csvPath string) {
	proj := detectProject()

	rows, err := csvexport.ParseFile(csvPath)
	if err != nil {
		logError("Reading %s: %v", csvPath, err)
		os.Exit(1)
	}
	if len(rows) == 0 {
		logError("%s contains no records", csvPath)
		os.Exit(1)
	}

	tables, langs := csvexport.ByLang(rows)
	logInfo("Deploying %d records for: %s", len(rows), strings.Join(langs, ", "))

	failed := 0
	for _, lang := range langs {
		path := proj.StringsPath(lang)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			logError("%s: %v", lang, err)
			failed++
			continue
		}
		table := tables[lang]
		if err := table.WriteFile(path); err != nil {
			logError("%s: writing %s: %v", lang, path, err)
			failed++
			continue
		}
		logSuccess("%s: %s (%d keys)", lang, path, len(table.Records))
	}

	if failed > 0 {
		logError(i18n.N("%d language failed", "%d languages failed", failed), failed)
		os.Exit(1)
	}
	logSuccess("Deploy complete!")
}

// ---------------------------------------------------------------------------
// report (diff previous vs current locale tree)
// ---------------------------------------------------------------------------

func newReportCmd() *cobra.Command {
	var (
		prevDir string
		newDir  string
		output  string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Diff a previous locale tree against the current one",
		Long: `Compare a previously deployed locale tree against the current one
and write a unified-diff report for review before deployment.

Locale folders are matched by their leading two-letter language code, so
de.lproj on one side pairs with de.DE on the other. Languages present on
only one side are warnings; a report with no matched language at all is
an error.`,
		Run: func(cmd *cobra.Command, args []string) {
			runReport(prevDir, newDir, output)
		},
	}

	cmd.Flags().StringVar(&prevDir, "prev", "", "Previous locale tree (required)")
	cmd.Flags().StringVar(&newDir, "new", "", "New locale tree (default: the project app dir)")
	cmd.Flags().StringVarP(&output, "output", "O", "strings-report.diff", "Report file path")
	_ = cmd.MarkFlagRequired("prev")

	return cmd
}

func runReport(prevDir, newDir, output string) {
	proj := detectProject()
	if newDir == "" {
		newDir = proj.AppDir
	}

	sum, err := diffreport.Run(prevDir, newDir, output, diffreport.Options{
		StringsFile: proj.StringsFile,
		OnLog: func(format string, args ...any) {
			logInfo(format, args...)
		},
		OnWarn: func(format string, args ...any) {
			logWarning(format, args...)
		},
	})
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}

	logSuccess("Report written to %s (%d languages compared, %d changed)",
		output, sum.Matched, sum.Changed)
}

// ---------------------------------------------------------------------------
// auth (show/acquire the access token)
// ---------------------------------------------------------------------------

func newAuthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Show or acquire the Cloud Translation access token",
		Long: `Show or acquire the access token used for the Cloud Translation API.

The token is resolved from the ` + gcloud.TokenEnvVar + ` environment variable
when set, otherwise from the gcloud CLI. Tokens are held in memory for
a single run only, nothing is written to disk.`,
		Run: func(cmd *cobra.Command, args []string) {
			if env := os.Getenv(gcloud.TokenEnvVar); env != "" {
				logSuccess("Token from %s: %s", gcloud.TokenEnvVar, gcloud.MaskToken(env))
				return
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt)
			go func() {
				<-sigCh
				cancel()
			}()

			session := gcloud.NewSession(&gcloud.CLITokenSource{})
			if err := session.Refresh(ctx); err != nil {
				logError("Cannot acquire access token: %v", err)
				fmt.Fprintf(os.Stderr, "\n  Install the gcloud CLI and sign in:\n")
				fmt.Fprintf(os.Stderr, "    gcloud auth login\n\n")
				fmt.Fprintf(os.Stderr, "  Or provide a token directly:\n")
				fmt.Fprintf(os.Stderr, "    export %s=...\n\n", gcloud.TokenEnvVar)
				os.Exit(1)
			}

			logSuccess("Access token acquired: %s", gcloud.MaskToken(session.Token()))
			fmt.Fprintf(os.Stderr, "\n  Tokens are per-run only. To reuse one across runs:\n")
			fmt.Fprintf(os.Stderr, "    export %s=\"$(gcloud auth print-access-token)\"\n\n", gcloud.TokenEnvVar)
		},
	}
}

// ---------------------------------------------------------------------------
// Shared helpers
// ---------------------------------------------------------------------------

func detectProject() *project.Project {
	proj, err := project.Detect(rootDir)
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}
	return proj
}

// intersectLanguages keeps the requested languages that are actually
// available, in request order, trimming stray whitespace.
func intersectLanguages(available, requested []string) []string {
	known := make(map[string]bool, len(available))
	for _, lang := range available {
		known[lang] = true
	}
	var result []string
	for _, lang := range requested {
		lang = strings.TrimSpace(lang)
		if known[lang] {
			result = append(result, lang)
		}
	}
	return result
}

// filterOutLang removes every occurrence of lang.
func filterOutLang(langs []string, lang string) []string {
	var result []string
	for _, l := range langs {
		if l != lang {
			result = append(result, l)
		}
	}
	return result
}

// fileExists returns true if the file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
