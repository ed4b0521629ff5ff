package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gdshell/gdshell/internal/pipmeta"
)

func newPipCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pip",
		Short: "Manage python packages in the active environment",
	}

	install := &cobra.Command{
		Use:   "install <package>...",
		Short: "Install packages into the active environment",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runPipInstall,
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List installed packages",
		Args:  cobra.NoArgs,
		RunE:  runPipList,
	}

	show := &cobra.Command{
		Use:   "show <package>",
		Short: "Show package metadata from the index",
		Args:  cobra.ExactArgs(1),
		RunE:  runPipShow,
	}
	show.Flags().Bool("show-deps", false, "also resolve and show direct dependencies")

	cmd.AddCommand(install, list, show)

	return cmd
}

func runPipInstall(cmd *cobra.Command, args []string) error {
	s, ctx, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	argv := []string{"-m", "pip", "install"}

	// Installs land in the active environment's directory; without one
	// they go to the remote user site.
	activeEnv := s.shell.Venv.ActiveEnv

	if activeEnv != "" {
		state, stateErr := s.venvStore().Current(ctx, s.shell.ID)
		if stateErr != nil {
			return stateErr
		}

		if state.EnvPath != "" {
			argv = append(argv, "--target", state.EnvPath)
		}
	} else {
		argv = append(argv, "--user")
	}

	argv = append(argv, args...)

	result, err := s.executor.Run(ctx, s.newEnvelope("python3", argv))
	if err != nil {
		return err
	}

	if result.ExitCode != 0 {
		fmt.Fprint(os.Stderr, result.Stderr)
		return fmt.Errorf("remote pip install exited %d", result.ExitCode)
	}

	statusf("Installed %s\n", strings.Join(args, ", "))

	if activeEnv == "" {
		return nil
	}

	// The environment manifest records what the index says was current;
	// metadata failures degrade to recording without versions.
	manifest := map[string]string{}

	packages, failures := s.pipIndex().GetAll(ctx, args)
	for _, name := range args {
		if pkg, ok := packages[name]; ok {
			manifest[name] = pkg.Version
		} else {
			manifest[name] = ""
		}
	}

	for name, fetchErr := range failures {
		s.logger.Warn("package metadata unavailable",
			slog.String("package", name),
			slog.String("error", fetchErr.Error()),
		)
	}

	return s.venvStore().UpdatePackages(ctx, activeEnv, manifest)
}

// pipIndex returns the package index metadata client.
func (s *session) pipIndex() *pipmeta.Client {
	return pipmeta.NewClient(pipmeta.DefaultBaseURL, s.logger)
}

func runPipList(cmd *cobra.Command, _ []string) error {
	s, ctx, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	// With an active environment the manifest answers locally through the
	// gateway; otherwise the listing comes from the remote interpreter.
	if s.shell.Venv.ActiveEnv != "" {
		doc, readErr := s.venvStore().Read(ctx)
		if readErr != nil {
			return readErr
		}

		env, ok := doc.Environments[s.shell.Venv.ActiveEnv]
		if !ok {
			return fmt.Errorf("active environment %s no longer exists", s.shell.Venv.ActiveEnv)
		}

		return printPackageManifest(env.Packages)
	}

	result, err := s.executor.Run(ctx, s.newEnvelope("python3", []string{"-m", "pip", "list"}))
	if err != nil {
		return err
	}

	return emitRemoteResult(result)
}

func printPackageManifest(packages map[string]string) error {
	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(packages)
	}

	names := make([]string, 0, len(packages))
	for name := range packages {
		names = append(names, name)
	}

	sort.Strings(names)

	headers := []string{"PACKAGE", "VERSION"}
	rows := make([][]string, 0, len(names))

	for _, name := range names {
		version := packages[name]
		if version == "" {
			version = "-"
		}

		rows = append(rows, []string{name, version})
	}

	printTable(os.Stdout, headers, rows)

	return nil
}

// pipShowJSONOutput is the JSON output schema for pip show.
type pipShowJSONOutput struct {
	Name     string            `json:"name"`
	Version  string            `json:"version"`
	Summary  string            `json:"summary,omitempty"`
	License  string            `json:"license,omitempty"`
	HomePage string            `json:"home_page,omitempty"`
	Requires []string          `json:"requires,omitempty"`
	Deps     map[string]string `json:"deps,omitempty"`
}

func runPipShow(cmd *cobra.Command, args []string) error {
	s, ctx, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	showDeps, err := cmd.Flags().GetBool("show-deps")
	if err != nil {
		return err
	}

	index := s.pipIndex()

	pkg, err := index.Get(ctx, args[0])
	if err != nil {
		return err
	}

	requires := pkg.Requires()

	var deps map[string]string

	if showDeps && len(requires) > 0 {
		deps = map[string]string{}

		resolved, failures := index.GetAll(ctx, requires)
		for name, dep := range resolved {
			deps[name] = dep.Version
		}

		for name := range failures {
			deps[name] = "?"
		}
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(pipShowJSONOutput{
			Name:     pkg.Name,
			Version:  pkg.Version,
			Summary:  pkg.Summary,
			License:  pkg.License,
			HomePage: pkg.HomePage,
			Requires: requires,
			Deps:     deps,
		})
	}

	fmt.Printf("Name:     %s\n", pkg.Name)
	fmt.Printf("Version:  %s\n", pkg.Version)

	if pkg.Summary != "" {
		fmt.Printf("Summary:  %s\n", pkg.Summary)
	}

	if pkg.License != "" {
		fmt.Printf("License:  %s\n", pkg.License)
	}

	if pkg.HomePage != "" {
		fmt.Printf("Home:     %s\n", pkg.HomePage)
	}

	if len(requires) > 0 {
		fmt.Printf("Requires: %s\n", strings.Join(requires, ", "))
	}

	if deps != nil {
		names := make([]string, 0, len(deps))
		for name := range deps {
			names = append(names, name)
		}

		sort.Strings(names)

		fmt.Println("Dependencies:")

		for _, name := range names {
			fmt.Printf("  %s %s\n", name, deps[name])
		}
	}

	return nil
}
