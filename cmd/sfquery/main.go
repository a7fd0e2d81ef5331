// Command sfquery runs SOQL queries against a salesforce instance and
// renders the accumulated result set as a table.
package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sfquery"
)

var (
	authURL      string
	clientID     string
	clientSecret string
	username     string
	password     string
	apiVersion   string
	charset      string
	insecure     bool
	debug        bool
)

var rootCmd = &cobra.Command{
	Use:           "sfquery",
	Short:         "Salesforce SOQL query client",
	Long:          `sfquery authenticates against salesforce via the OAuth 2.0 password grant and runs SOQL queries, following server-side pagination until the full result set is retrieved.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var queryCmd = &cobra.Command{
	Use:   "query <soql>",
	Short: "Run a SOQL query and print all records",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := []sfquery.Option{
			sfquery.WithAPIVersion(apiVersion),
		}
		if insecure {
			opts = append(opts, sfquery.WithInsecureSkipVerify())
		}
		if debug {
			logger, err := zap.NewDevelopment()
			if err != nil {
				return err
			}
			defer logger.Sync()
			opts = append(opts, sfquery.WithLogger(logger), sfquery.WithDebug())
		}
		if charset != "" {
			enc, err := sfquery.EncodingByName(charset)
			if err != nil {
				return fmt.Errorf("unknown charset %q: %w", charset, err)
			}
			opts = append(opts, sfquery.WithRecordEncoding(enc))
		}

		client, err := sfquery.NewClientWithPassword(cmd.Context(), sfquery.LoginConfig{
			AuthURL:      authURL,
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Username:     username,
			Password:     password,
		}, opts...)
		if err != nil {
			return err
		}

		records, err := client.Query(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(records) == 0 {
			pterm.Info.Println("Query returned no records")
			return nil
		}

		return pterm.DefaultTable.WithHasHeader().WithData(tableData(records)).Render()
	},
}

// tableData lays records out as rows under a stable, alphabetically sorted
// header taken from the first record's fields.
func tableData(records []sfquery.Record) pterm.TableData {
	header := make([]string, 0, len(records[0]))
	for field := range records[0] {
		header = append(header, field)
	}
	sort.Strings(header)

	data := pterm.TableData{header}
	for _, rec := range records {
		row := make([]string, len(header))
		for i, field := range header {
			row[i] = rec[field]
		}
		data = append(data, row)
	}
	return data
}

func init() {
	rootCmd.PersistentFlags().StringVar(&authURL, "auth-url", "https://login.salesforce.com", "OAuth login server (use https://test.salesforce.com for sandboxes)")
	rootCmd.PersistentFlags().StringVar(&clientID, "client-id", "", "Connected app consumer key")
	rootCmd.PersistentFlags().StringVar(&clientSecret, "client-secret", "", "Connected app consumer secret")
	rootCmd.PersistentFlags().StringVar(&username, "username", "", "Salesforce username")
	rootCmd.PersistentFlags().StringVar(&password, "password", "", "Salesforce password with the security token appended")
	rootCmd.PersistentFlags().StringVar(&apiVersion, "api-version", sfquery.DefaultAPIVersion, "REST API version")
	rootCmd.PersistentFlags().StringVar(&charset, "charset", "", "Re-encode record fields to this charset (IANA name)")
	rootCmd.PersistentFlags().BoolVar(&insecure, "insecure", false, "Skip TLS certificate verification")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Log request URLs and raw response bodies")

	rootCmd.AddCommand(queryCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}
