package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/olusolaa/bedrock-kb-provisioner/internal/app"
	apperrors "github.com/olusolaa/bedrock-kb-provisioner/internal/errors"
)

var (
	cfgFile    string
	logLevel   string
	logFormat  string
	region     string
	bucket     string
	nameSuffix string
	recordPath string
	reporter   string
)

var rootCmd = &cobra.Command{
	Use:   "kb-provision",
	Short: "Provisions an Amazon Bedrock knowledge base and its vector store.",
	Long: `kb-provision creates the full resource chain a Bedrock knowledge base
needs: an execution role with its policies, an OpenSearch Serverless vector
collection and index, the knowledge base itself, and an S3 data source.

Every resource is probed before creation, so reruns adopt what already
exists and resume from the first missing resource. Identifiers are written
to a provisioning record for downstream retrieval tooling.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initializeConfig(cmd)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		printUserFacing(err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cfgFile, "config", "c", "", "Configuration file path (default is .kb-provision.yaml)")
	pf.StringVar(&logLevel, "log-level", "", "Override log level (debug, info, warn, error)")
	pf.StringVar(&logFormat, "log-format", "", "Override log format (text, json)")
	pf.StringVar(&region, "region", "", "AWS region")
	pf.StringVar(&bucket, "bucket", "", "S3 bucket holding the source documents")
	pf.StringVar(&nameSuffix, "suffix", "", "Suffix appended to default resource names")
	pf.StringVar(&recordPath, "record", "", "Provisioning record path")
	pf.StringVar(&reporter, "reporter", "", "Report format (text, json)")

	viper.BindPFlag("settings.log_level", pf.Lookup("log-level"))
	viper.BindPFlag("settings.log_format", pf.Lookup("log-format"))
	viper.BindPFlag("settings.reporter", pf.Lookup("reporter"))
	viper.BindPFlag("aws.region", pf.Lookup("region"))
	viper.BindPFlag("source.bucket", pf.Lookup("bucket"))
	viper.BindPFlag("names.suffix", pf.Lookup("suffix"))
	viper.BindPFlag("record.path", pf.Lookup("record"))

	viper.SetEnvPrefix("KBPROV")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(provisionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(verifyCmd)
}

func initializeConfig(cmd *cobra.Command) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(".")
		viper.AddConfigPath(home)
		viper.SetConfigName(".kb-provision")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return apperrors.Wrap(err, apperrors.CodeConfigReadError, "failed to read config file")
		}
	}

	return nil
}

func buildApp(cmd *cobra.Command) (*app.Application, error) {
	application, err := app.BuildApplicationFromViper(cmd.Context(), viper.GetViper())
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Application initialization failed: %v\n", err)
		return nil, err
	}
	return application, nil
}

func printUserFacing(err error) {
	userMsg, suggestion, ok := apperrors.GetUserFacingMessage(err)
	if !ok {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return
	}
	fmt.Fprintf(os.Stderr, "ERROR: %s\n", userMsg)
	if suggestion != "" {
		fmt.Fprintf(os.Stderr, "Suggestion: %s\n", suggestion)
	}
}
