package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"judgesandbox/compiler"
)

var compileCmd = &cobra.Command{
	Use:   "compile <language> <source-file>",
	Short: "Compile a source file using a registered language backend",
	Args:  cobra.ExactArgs(2),
	RunE:  runCompile,
}

var compileOutput string

func init() {
	rootCmd.AddCommand(compileCmd)
	compileCmd.Flags().StringVarP(&compileOutput, "output", "o", "a.out", "path to write the compiled executable")
}

func runCompile(cmd *cobra.Command, args []string) error {
	language, sourceFile := args[0], args[1]

	code, err := os.ReadFile(sourceFile)
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}

	dispatcher := compiler.NewDispatcher(hostConfig.CompileParallel)
	result, err := dispatcher.Compile(cmdContext, compiler.Source{
		Language: language,
		Code:     code,
	}, compileOutput)
	if err != nil {
		return err
	}

	if !result.Success {
		fmt.Fprintln(os.Stderr, string(result.Stderr))
		return fmt.Errorf("compile failed")
	}

	fmt.Println(compileOutput)
	return nil
}
