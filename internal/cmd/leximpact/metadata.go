package leximpact

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	apperrors "github.com/leximpact/socio-fiscal-api/internal/platform/errors"
	"github.com/leximpact/socio-fiscal-api/internal/services/simulation/metadata"
)

type ancestorsOutput struct {
	Parameter json.RawMessage   `json:"parameter"`
	Ancestors []json.RawMessage `json:"ancestors"`
}

func newParameterCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "parameter <name>",
		Short: "Print one parameter node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parameters, err := opts.metadata().Parameters(cmd.Context())
			if err != nil {
				return err
			}
			parameter, ok := parameters.Parameter(args[0])
			if !ok {
				return apperrors.WithMetadata(apperrors.CodeParameterNotFound,
					fmt.Sprintf("parameter %s not found", args[0]), map[string]string{"Name": args[0]})
			}
			return write(cmd.OutOrStdout(), opts.Format, parameter)
		},
	}
}

func newAncestorsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ancestors <name>",
		Short: "Print a parameter with the nodes above it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parameters, err := opts.metadata().Parameters(cmd.Context())
			if err != nil {
				return err
			}
			parameter, ancestors, ok := parameters.ParameterWithAncestors(args[0])
			if !ok {
				parameter = json.RawMessage("null")
			}
			return write(cmd.OutOrStdout(), opts.Format, ancestorsOutput{Parameter: parameter, Ancestors: ancestors})
		},
	}
}

func newVariableCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "variable <name>",
		Short: "Print one variable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			variable, _, err := lookupVariable(cmd, opts, args[0])
			if err != nil {
				return err
			}
			return write(cmd.OutOrStdout(), opts.Format, variable.Raw())
		},
	}
}

func newInputsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inputs <name> <date>",
		Short: "Print the input variables a variable depends on at date",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := parseDate(args[1])
			if err != nil {
				return err
			}
			variable, variables, err := lookupVariable(cmd, opts, args[0])
			if err != nil {
				return err
			}
			inputs := make([]json.RawMessage, 0)
			for input := range variables.InputVariables(variable, date) {
				inputs = append(inputs, input.Raw())
			}
			return write(cmd.OutOrStdout(), opts.Format, inputs)
		},
	}
}

func newVariableParametersCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "variable-parameters <name> <date>",
		Short: "Print the parameters a variable reads at date",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			date, err := parseDate(args[1])
			if err != nil {
				return err
			}
			variable, variables, err := lookupVariable(cmd, opts, args[0])
			if err != nil {
				return err
			}
			parameters, err := opts.metadata().Parameters(cmd.Context())
			if err != nil {
				return err
			}
			referenced := make([]json.RawMessage, 0)
			for parameter := range variables.VariableParameters(variable, date, parameters) {
				referenced = append(referenced, parameter)
			}
			return write(cmd.OutOrStdout(), opts.Format, referenced)
		},
	}
}

func lookupVariable(cmd *cobra.Command, opts *RootOptions, name string) (metadata.Variable, metadata.Variables, error) {
	variables, err := opts.metadata().Variables(cmd.Context())
	if err != nil {
		return metadata.Variable{}, metadata.Variables{}, err
	}
	variable, ok := variables.Variable(name)
	if !ok {
		return metadata.Variable{}, metadata.Variables{}, apperrors.WithMetadata(apperrors.CodeVariableNotFound,
			fmt.Sprintf("variable %s not found", name), map[string]string{"Name": name})
	}
	return variable, variables, nil
}

func parseDate(value string) (string, error) {
	if _, err := time.Parse(time.DateOnly, value); err != nil {
		return "", apperrors.WrapWithMetadata(apperrors.CodeInvalidDate,
			fmt.Sprintf("invalid date %q", value), map[string]string{"Date": value}, err)
	}
	return value, nil
}
