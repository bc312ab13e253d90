package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	herald "github.com/herald/herald/sdk/go"
)

var v = viper.New()

var rootCmd = &cobra.Command{
	Use:          "heraldctl",
	Short:        "Command line client for the Herald API",
	SilenceUsage: true,
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a campaign from a CSV or JSON recipients file",
	RunE:  runCreate,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List campaigns with their counts",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var statusCmd = &cobra.Command{
	Use:   "status [campaign-id]",
	Short: "Show a campaign's recipient counts",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

var dispatchCmd = &cobra.Command{
	Use:   "dispatch [campaign-id]",
	Short: "Send a campaign to its pending recipients",
	Args:  cobra.ExactArgs(1),
	RunE:  runDispatch,
}

var recipientsCmd = &cobra.Command{
	Use:   "recipients [campaign-id]",
	Short: "List a campaign's recipients",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecipients,
}

var attemptsCmd = &cobra.Command{
	Use:   "attempts [recipient-id]",
	Short: "Show a recipient's send attempts",
	Args:  cobra.ExactArgs(1),
	RunE:  runAttempts,
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check server health",
	Args:  cobra.NoArgs,
	RunE:  runHealth,
}

func init() {
	rootCmd.PersistentFlags().String("server", "http://localhost:8080", "Herald server URL")
	rootCmd.PersistentFlags().String("api-key", "", "API key")
	rootCmd.PersistentFlags().Bool("json", false, "print raw JSON")
	v.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))
	v.BindPFlag("api_key", rootCmd.PersistentFlags().Lookup("api-key"))
	v.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	v.SetEnvPrefix("HERALD")
	v.AutomaticEnv()

	createCmd.Flags().String("name", "", "campaign name")
	createCmd.Flags().String("kind", herald.KindEmail, "email, sms or both")
	createCmd.Flags().String("template", "", "message template")
	createCmd.Flags().String("template-file", "", "read the message template from a file")
	createCmd.Flags().String("recipients", "", "recipients file (.csv or .json)")
	createCmd.MarkFlagRequired("name")
	createCmd.MarkFlagRequired("recipients")

	recipientsCmd.Flags().String("status", "", "only recipients with this status")

	rootCmd.AddCommand(createCmd, listCmd, statusCmd, dispatchCmd, recipientsCmd, attemptsCmd, healthCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func client() *herald.Client {
	return herald.NewClient(herald.Config{
		BaseURL: v.GetString("server"),
		APIKey:  v.GetString("api_key"),
	})
}

func runCreate(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("name")
	kind, _ := cmd.Flags().GetString("kind")
	tmpl, _ := cmd.Flags().GetString("template")
	tmplFile, _ := cmd.Flags().GetString("template-file")
	recipientsFile, _ := cmd.Flags().GetString("recipients")

	if tmplFile != "" {
		b, err := os.ReadFile(tmplFile)
		if err != nil {
			return fmt.Errorf("failed to read template: %w", err)
		}
		tmpl = string(b)
	}
	if strings.TrimSpace(tmpl) == "" {
		return fmt.Errorf("one of --template or --template-file is required")
	}

	rows, err := loadRows(recipientsFile)
	if err != nil {
		return err
	}

	summary, err := client().CreateCampaign(cmd.Context(), herald.CreateCampaignRequest{
		Name:       name,
		Kind:       kind,
		Template:   tmpl,
		Recipients: rows,
	})
	if err != nil {
		return err
	}
	if v.GetBool("json") {
		return printJSON(cmd.OutOrStdout(), summary)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created campaign %s\n", summary.CampaignID)
	fmt.Fprintf(cmd.OutOrStdout(), "  rows: %d  created: %d  skipped: %d  rejected: %d  duplicates: %d\n",
		summary.TotalRows, summary.Created, summary.Skipped, summary.Rejected, summary.Duplicates)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	campaigns, err := client().ListCampaigns(cmd.Context())
	if err != nil {
		return err
	}
	if v.GetBool("json") {
		return printJSON(cmd.OutOrStdout(), campaigns)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tKIND\tTOTAL\tSENT\tFAILED\tPENDING\tSKIPPED\tCOMPLETED")
	for _, c := range campaigns {
		s := c.Stats
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%v\n",
			c.Campaign.ID, c.Campaign.Name, c.Campaign.Kind, s.Total, s.Sent, s.Failed, s.Pending, s.Skipped, s.Completed)
	}
	return tw.Flush()
}

func runStatus(cmd *cobra.Command, args []string) error {
	status, err := client().Status(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if v.GetBool("json") {
		return printJSON(cmd.OutOrStdout(), status)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "total: %d  sent: %d  failed: %d  pending: %d  skipped: %d  completed: %v\n",
		status.Total, status.Sent, status.Failed, status.Pending, status.Skipped, status.Completed)
	return nil
}

func runDispatch(cmd *cobra.Command, args []string) error {
	result, err := client().Dispatch(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if v.GetBool("json") {
		return printJSON(cmd.OutOrStdout(), result)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "sent: %d  failed: %d  completed: %v\n", result.Sent, result.Failed, result.Completed)
	return nil
}

func runRecipients(cmd *cobra.Command, args []string) error {
	status, _ := cmd.Flags().GetString("status")
	recipients, err := client().Recipients(cmd.Context(), args[0], status)
	if err != nil {
		return err
	}
	if v.GetBool("json") {
		return printJSON(cmd.OutOrStdout(), recipients)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tPHONE\tSTATUS\tERROR")
	for _, rc := range recipients {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			rc.ID, strings.TrimSpace(rc.FirstName+" "+rc.LastName), str(rc.Email), str(rc.Phone), rc.Status, str(rc.ErrorMessage))
	}
	return tw.Flush()
}

func runAttempts(cmd *cobra.Command, args []string) error {
	attempts, err := client().Attempts(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if v.GetBool("json") {
		return printJSON(cmd.OutOrStdout(), attempts)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SENT AT\tCHANNEL\tSUCCESS\tERROR")
	for _, a := range attempts {
		fmt.Fprintf(tw, "%s\t%s\t%v\t%s\n", a.SentAt.Format("2006-01-02 15:04:05"), a.Channel, a.Success, str(a.ErrorDetail))
	}
	return tw.Flush()
}

func runHealth(cmd *cobra.Command, args []string) error {
	health, err := client().Health(cmd.Context())
	if health != nil {
		if perr := printJSON(cmd.OutOrStdout(), health); perr != nil {
			return perr
		}
	}
	return err
}

func printJSON(w io.Writer, data interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func str(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
