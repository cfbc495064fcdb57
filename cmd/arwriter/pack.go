package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	arwriter "github.com/appsworld/ar-archive-writer"
	"github.com/appsworld/ar-archive-writer/objreader"
)

func newPackCommand() *cobra.Command {
	var (
		kindFlag string
		output   string
		thin     bool
		ec       bool
	)

	cmd := &cobra.Command{
		Use:   "pack [object files...]",
		Short: "Assemble object files into a static archive",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKind(kindFlag)
			if err != nil {
				return err
			}

			members, err := loadMembers(args)
			if err != nil {
				return err
			}

			out, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("arwriter: creating %s: %w", output, err)
			}
			defer out.Close()

			return arwriter.WriteArchive(out, kind, thin, ec, members)
		},
	}

	cmd.Flags().StringVarP(&kindFlag, "format", "f", "gnu", "archive format: gnu, gnu64, bsd, darwin, darwin64, coff, aixbig")
	cmd.Flags().StringVarP(&output, "output", "o", "a.out.a", "output archive path")
	cmd.Flags().BoolVar(&thin, "thin", false, "write a thin archive (members referenced by path)")
	cmd.Flags().BoolVar(&ec, "ec", false, "build the ARM64EC second-chance symbol view")
	return cmd
}

func loadMembers(paths []string) ([]arwriter.NewArchiveMember, error) {
	members := make([]arwriter.NewArchiveMember, 0, len(paths))
	for _, p := range paths {
		buf, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("arwriter: reading %s: %w", p, err)
		}
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("arwriter: stat %s: %w", p, err)
		}
		members = append(members, arwriter.NewArchiveMember{
			Buf:          buf,
			ObjectReader: objreader.Default,
			MemberName:   baseName(p),
			MTime:        uint64(info.ModTime().Unix()),
			Perms:        uint32(info.Mode().Perm()),
		})
	}
	return members, nil
}

func baseName(p string) string {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			return p[i+1:]
		}
	}
	return p
}

func parseKind(s string) (arwriter.ArchiveKind, error) {
	switch s {
	case "gnu":
		return arwriter.KindGNU, nil
	case "gnu64":
		return arwriter.KindGNU64, nil
	case "bsd":
		return arwriter.KindBSD, nil
	case "darwin":
		return arwriter.KindDarwin, nil
	case "darwin64":
		return arwriter.KindDarwin64, nil
	case "coff":
		return arwriter.KindCOFF, nil
	case "aixbig":
		return arwriter.KindAIXBig, nil
	default:
		return 0, fmt.Errorf("arwriter: unknown archive format %q", s)
	}
}
