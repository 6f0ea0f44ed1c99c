package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/askfin/backend/internal/pkg/skills"
)

// errInvalidSkills validate/list 发现无效 Skill 时返回
var errInvalidSkills = errors.New("invalid skills found")

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "skillctl",
		Short:         "Validate, list and match SKILL.md files",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newValidateCmd(), newListCmd(), newMatchCmd())
	return root
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>...",
		Short: "Validate one or more SKILL.md files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parser := skills.NewParser()
			out := cmd.OutOrStdout()
			failed := 0
			for _, file := range args {
				data, err := os.ReadFile(file)
				if err != nil {
					failed++
					fmt.Fprintf(out, "FAIL %s: %v\n", file, err)
					continue
				}
				skill, err := parser.Parse(string(data))
				if err != nil {
					failed++
					fmt.Fprintf(out, "FAIL %s: %v\n", file, err)
					continue
				}
				fmt.Fprintf(out, "OK   %s (%s %s)\n", file, skill.Name(), skill.Version())
			}
			if failed > 0 {
				return fmt.Errorf("%w: %d of %d", errInvalidSkills, failed, len(args))
			}
			return nil
		},
	}
}

func newListCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the skills found in a public skills directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := skills.NewLoader(nil).LoadFromDir(dir)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tVERSION\tTRIGGERS\tPATH")
			failed := 0
			for _, r := range results {
				if r.Error != nil {
					failed++
					fmt.Fprintf(w, "!\t-\t%v\t%s\n", r.Error, r.Path)
					continue
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Skill.Name(), r.Skill.Version(), strings.Join(r.Skill.Triggers(), ", "), r.Path)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%w: %d", errInvalidSkills, failed)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", skills.DefaultConfig().PublicDir, "public skills directory")
	return cmd
}

func newMatchCmd() *cobra.Command {
	var (
		dir         string
		message     string
		industry    string
		maxSkills   int
		printPrompt bool
	)
	cmd := &cobra.Command{
		Use:   "match",
		Short: "Show which public skills a message would trigger",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(message) == "" {
				return errors.New("--message is required")
			}
			ctx := context.Background()
			registry := skills.NewRegistry(skills.RegistryOptions{PublicDir: dir})
			injector := skills.NewInjector(registry, nil)
			out := cmd.OutOrStdout()

			previews := injector.PreviewSkills(ctx, message, "", "")
			if len(previews) == 0 {
				fmt.Fprintln(out, "no skills matched")
			}
			for i, p := range previews {
				marker := " "
				if i < maxSkills {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %-24s %.2f  %q\n", marker, p.Name, p.Confidence, p.Trigger)
			}

			if printPrompt {
				prompt := injector.InjectSkills(ctx, "", skills.InjectContext{
					UserMessage: message,
					Industry:    industry,
				}, skills.WithMaxSkills(maxSkills))
				fmt.Fprintln(out)
				fmt.Fprintln(out, strings.TrimSpace(prompt))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", skills.DefaultConfig().PublicDir, "public skills directory")
	cmd.Flags().StringVarP(&message, "message", "m", "", "user message to match")
	cmd.Flags().StringVar(&industry, "industry", "", "append the industry guideline when present")
	cmd.Flags().IntVar(&maxSkills, "max", skills.DefaultMaxSkills, "number of skills that would be injected")
	cmd.Flags().BoolVar(&printPrompt, "prompt", false, "print the injected prompt")
	return cmd
}
