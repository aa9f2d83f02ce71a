package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/agentide/conductor/internal/config"
	"github.com/agentide/conductor/internal/llm"
	"github.com/agentide/conductor/pkg/models"
)

var capabilitiesCmd = &cobra.Command{
	Use:   "capabilities",
	Short: "List enabled worker capabilities",
	Long: `List the worker capabilities enabled in the current configuration,
with the inputs they require and the outputs they produce.`,
	RunE: runCapabilities,
}

func runCapabilities(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Descriptors do not need a live provider.
	reg, err := buildRegistry(cfg, llm.NewMockGateway())
	if err != nil {
		return err
	}

	descriptors := reg.Capabilities()
	names := make([]string, 0, len(descriptors))
	for capability := range descriptors {
		names = append(names, string(capability))
	}
	sort.Strings(names)

	fmt.Printf("Enabled capabilities: %d\n\n", len(names))
	for _, name := range names {
		d := descriptors[models.CapabilityType(name)]
		fmt.Printf("%s\n", color.CyanString(name))
		if len(d.RequiredInputs) > 0 {
			fmt.Printf("  Inputs:  %s\n", strings.Join(d.RequiredInputs, ", "))
		}
		if len(d.Outputs) > 0 {
			fmt.Printf("  Outputs: %s\n", strings.Join(d.Outputs, ", "))
		}
		if d.EstimatedDuration > 0 {
			fmt.Printf("  Typical duration: %s\n", d.EstimatedDuration)
		}
		fmt.Printf("  Workers: %d\n", d.Workers)
	}
	return nil
}
