package main

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/appsworld/ar-archive-writer/coffimport"
	"github.com/appsworld/ar-archive-writer/types"
)

func newDlltoolCommand() *cobra.Command {
	var (
		dllName  string
		output   string
		machine  string
		mingw    bool
		defFile  string
	)

	cmd := &cobra.Command{
		Use:   "dlltool",
		Short: "Synthesize a Windows import library for a DLL",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := parseMachine(machine)
			if err != nil {
				return err
			}

			lines, err := os.ReadFile(defFile)
			if err != nil {
				return fmt.Errorf("arwriter: reading %s: %w", defFile, err)
			}
			exports := parseDefExports(string(lines))

			var buf bytes.Buffer
			if err := coffimport.WriteImportLibrary(&buf, dllName, exports, m, mingw); err != nil {
				return err
			}

			return os.WriteFile(output, buf.Bytes(), 0o644)
		},
	}

	cmd.Flags().StringVar(&dllName, "dllname", "", "name of the DLL the import library wraps")
	cmd.Flags().StringVarP(&output, "output-lib", "l", "", "output import-library path")
	cmd.Flags().StringVarP(&machine, "machine", "m", "x86-64", "target machine: x86-64, i386, arm, arm64, arm64ec")
	cmd.Flags().BoolVar(&mingw, "mingw", false, "emit a GNU-format archive instead of a COFF archive")
	cmd.Flags().StringVarP(&defFile, "input-def", "d", "", "module-definition (.def) file listing exports")
	cmd.MarkFlagRequired("dllname")
	cmd.MarkFlagRequired("output-lib")
	cmd.MarkFlagRequired("input-def")
	return cmd
}

func parseMachine(s string) (types.MachineType, error) {
	switch strings.ToLower(s) {
	case "x86-64", "amd64":
		return types.MachineAMD64, nil
	case "i386", "x86":
		return types.MachineI386, nil
	case "arm":
		return types.MachineARMNT, nil
	case "arm64":
		return types.MachineARM64, nil
	case "arm64ec":
		return types.MachineARM64EC, nil
	default:
		return 0, fmt.Errorf("arwriter: unknown machine %q", s)
	}
}

// parseDefExports reads the EXPORTS section of a module-definition
// file: one symbol per line, optionally followed by "@<ordinal>",
// "NONAME", "DATA", or "CONSTANT" qualifiers. Blank lines and
// everything before the EXPORTS keyword are ignored.
func parseDefExports(contents string) []coffimport.ShortExport {
	lines := strings.Split(contents, "\n")
	inExports := false
	var exports []coffimport.ShortExport

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.EqualFold(line, "EXPORTS") {
			inExports = true
			continue
		}
		if !inExports {
			continue
		}

		fields := strings.Fields(line)
		e := coffimport.ShortExport{Name: fields[0]}
		for _, f := range fields[1:] {
			switch {
			case strings.HasPrefix(f, "@"):
				if n, err := strconv.Atoi(f[1:]); err == nil {
					e.Ordinal = uint16(n)
				}
			case strings.EqualFold(f, "NONAME"):
				e.Noname = true
			case strings.EqualFold(f, "DATA"):
				e.Data = true
			case strings.EqualFold(f, "CONSTANT"):
				e.Constant = true
			case strings.EqualFold(f, "PRIVATE"):
				e.Private = true
			}
		}
		exports = append(exports, e)
	}

	return lo.UniqBy(exports, func(e coffimport.ShortExport) string { return e.Name })
}
