package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/GappelSolutions/lazyops/pkg/cache"
	"github.com/GappelSolutions/lazyops/pkg/config"
	"github.com/GappelSolutions/lazyops/pkg/ui"
	"github.com/GappelSolutions/lazyops/pkg/updater"
)

func main() {
	help := flag.Bool("help", false, "Show help")
	version := flag.Bool("version", false, "Show version")
	project := flag.String("project", "", "Project name from the config to open")
	flag.Parse()

	if *help {
		fmt.Println("Usage: lazyops [options]")
		fmt.Println("\nA TUI dashboard for Azure DevOps sprint boards.")
		flag.PrintDefaults()
		os.Exit(0)
	}

	if *version {
		fmt.Println("lazyops version " + updater.Version)
		os.Exit(0)
	}

	cfg, cfgPath, err := config.Load()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	if len(cfg.Projects) == 0 {
		fmt.Println("No projects configured. Create ~/.config/lazyops/config.toml")
		fmt.Println("with at least one [[projects]] entry (name, organization, project, team).")
		os.Exit(1)
	}

	m := ui.New(cfg, resolveProject(cfg, *project))

	if cfgPath != "" {
		if w, err := config.WatchFile(cfgPath); err == nil {
			m.SetConfigWatcher(w)
		}
	}

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Error running lazyops: %v\n", err)
		os.Exit(1)
	}
}

// resolveProject picks the project to open: the -project flag, the
// last project used, the configured default, then the first entry.
func resolveProject(cfg *config.Config, flagName string) int {
	for _, name := range []string{flagName, cache.LoadLastProject(), cfg.DefaultProject} {
		if name == "" {
			continue
		}
		for i, p := range cfg.Projects {
			if p.Name == name {
				return i
			}
		}
	}
	return 0
}
