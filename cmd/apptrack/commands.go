package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/apptrack/internal/assist"
	"github.com/kalambet/apptrack/internal/config"
	"github.com/kalambet/apptrack/internal/export"
	"github.com/kalambet/apptrack/internal/storage"
)

func printJSON(v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// --- profile ---

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage the candidate profile",
}

var profileShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current profile as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		summary, _ := cmd.Flags().GetBool("summary")

		path := "/v1/profile"
		if summary {
			path = "/v1/profile/summary"
		}
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		if summary {
			var s map[string]string
			if err := decodeJSON(resp, &s); err != nil {
				return err
			}
			fmt.Fprintln(out, s["summary"])
			return nil
		}
		var p any
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}
		return printJSON(p)
	},
}

var profileEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open the profile JSON in $EDITOR",
	Long: `Open the profile JSON in $EDITOR. Every section present in the saved
file replaces the stored one, so manual edits always win over CV imports.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		editor := os.Getenv("EDITOR")
		if editor == "" {
			editor = "vi"
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/v1/profile")
		if err != nil {
			return err
		}
		var p any
		if err := decodeJSON(resp, &p); err != nil {
			return err
		}
		data, err := json.MarshalIndent(p, "", "  ")
		if err != nil {
			return err
		}

		tmpFile, err := os.CreateTemp("", "apptrack-profile-*.json")
		if err != nil {
			return fmt.Errorf("creating temp file: %w", err)
		}
		tmpPath := tmpFile.Name()
		defer os.Remove(tmpPath)

		if _, err := tmpFile.Write(data); err != nil {
			tmpFile.Close()
			return err
		}
		tmpFile.Close()

		editorCmd := exec.Command(editor, tmpPath)
		editorCmd.Stdin = os.Stdin
		editorCmd.Stdout = os.Stdout
		editorCmd.Stderr = os.Stderr
		if err := editorCmd.Run(); err != nil {
			return fmt.Errorf("editor exited with error: %w", err)
		}

		edited, err := os.ReadFile(tmpPath)
		if err != nil {
			return err
		}
		var fields map[string]any
		if err := json.Unmarshal(edited, &fields); err != nil {
			return fmt.Errorf("invalid JSON: %w", err)
		}

		patchResp, err := client.patch(cmd.Context(), "/v1/profile", fields)
		if err != nil {
			return err
		}
		if err := decodeJSON(patchResp, nil); err != nil {
			return err
		}
		printSuccess("Profile updated")
		return nil
	},
}

type importResult struct {
	Outcome      string   `json:"outcome"`
	Sections     []string `json:"sections"`
	LegacyFields []string `json:"legacy_fields"`
	UploadID     string   `json:"upload_id"`
}

var profileImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a CV (.pdf, .docx, .txt, .md) into the profile",
	Long: `Import a CV into the profile. Only empty profile sections are filled;
anything already in the profile is kept.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		async, _ := cmd.Flags().GetBool("async")

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading CV: %w", err)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := "/v1/profile/cv"
		if async {
			path += "?async=true"
		}
		printStep("Extracting profile from %s", filepath.Base(args[0]))
		resp, err := client.post(cmd.Context(), path, map[string]string{
			"filename":       filepath.Base(args[0]),
			"content_base64": base64.StdEncoding.EncodeToString(data),
		})
		if err != nil {
			return err
		}

		var res importResult
		if err := decodeJSON(resp, &res); err != nil {
			return err
		}
		reportImport(res)
		return nil
	},
}

func reportImport(res importResult) {
	switch {
	case res.UploadID != "":
		printSuccess("Queued CV import %s", res.UploadID)
	case res.Outcome != "ok":
		printWarning("Nothing imported (%s)", res.Outcome)
	case len(res.Sections) == 0:
		printSuccess("CV read; every section was already filled")
	default:
		printSuccess("Filled %s", strings.Join(res.Sections, ", "))
	}
}

func init() {
	profileShowCmd.Flags().Bool("summary", false, "show the compact text summary instead")
	profileImportCmd.Flags().Bool("async", false, "queue the import and return immediately")
	profileCmd.AddCommand(profileShowCmd, profileEditCmd, profileImportCmd)
}

// --- apps ---

var appsCmd = &cobra.Command{
	Use:     "apps",
	Aliases: []string{"applications"},
	Short:   "Track job applications",
}

func printApplications(apps []storage.Application) {
	tw := newTable("ID\tCOMPANY\tROLE\tSTATUS\tAPPLIED")
	for _, a := range apps {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", a.ID, a.Company, a.Role, a.Status, a.AppliedDate)
	}
	tw.Flush()
}

var appsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List applications, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		path := "/v1/applications/"
		if status != "" {
			path += "?status=" + url.QueryEscape(status)
		}
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}
		var list struct {
			Applications []storage.Application `json:"applications"`
		}
		if err := decodeJSON(resp, &list); err != nil {
			return err
		}
		if len(list.Applications) == 0 {
			printWarning("No applications")
			return nil
		}
		printApplications(list.Applications)
		return nil
	},
}

var appsAddCmd = &cobra.Command{
	Use:   "add <company> <role>",
	Short: "Track a new application",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]string{"company": args[0], "role": args[1]}
		for _, f := range []string{"location", "link", "date", "notes", "status"} {
			if v, _ := cmd.Flags().GetString(f); v != "" {
				body[appFlagFields[f]] = v
			}
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/v1/applications/", body)
		if err != nil {
			return err
		}
		var a storage.Application
		if err := decodeJSON(resp, &a); err != nil {
			return err
		}
		printSuccess("Added application %d: %s at %s", a.ID, a.Role, a.Company)
		return nil
	},
}

// appFlagFields maps apps add flags to request fields.
var appFlagFields = map[string]string{
	"location": "location",
	"link":     "job_link",
	"date":     "applied_date",
	"notes":    "notes",
	"status":   "status",
}

var appsStatusCmd = &cobra.Command{
	Use:   "status <id> <status>",
	Short: "Change the status of an application (Applied, Interview, Rejected, Offer)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.put(cmd.Context(), "/v1/applications/"+url.PathEscape(args[0]), map[string]string{"status": args[1]})
		if err != nil {
			return err
		}
		var a storage.Application
		if err := decodeJSON(resp, &a); err != nil {
			return err
		}
		printSuccess("Application %d is now %s", a.ID, a.Status)
		return nil
	},
}

var appsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an application and its interview",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.delete(cmd.Context(), "/v1/applications/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}
		if err := checkStatus(resp); err != nil {
			return err
		}
		resp.Body.Close()
		printSuccess("Deleted application %s", args[0])
		return nil
	},
}

var appsFollowupsCmd = &cobra.Command{
	Use:   "followups",
	Short: "List applications due a follow-up",
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), fmt.Sprintf("/v1/applications/followups?days=%d", days))
		if err != nil {
			return err
		}
		var due struct {
			Applications []storage.Application `json:"applications"`
		}
		if err := decodeJSON(resp, &due); err != nil {
			return err
		}
		if len(due.Applications) == 0 {
			printSuccess("Nothing to follow up")
			return nil
		}
		printApplications(due.Applications)
		return nil
	},
}

var appsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count applications per status",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/v1/applications/stats")
		if err != nil {
			return err
		}
		var stats struct {
			ByStatus map[string]int `json:"by_status"`
			Total    int            `json:"total"`
		}
		if err := decodeJSON(resp, &stats); err != nil {
			return err
		}
		for _, s := range storage.AllowedStatuses {
			printStatus(s, "%d", stats.ByStatus[s])
		}
		printStatus("Total", "%d", stats.Total)
		return nil
	},
}

func init() {
	appsListCmd.Flags().String("status", "", "only list applications with this status")
	appsAddCmd.Flags().String("location", "", "job location")
	appsAddCmd.Flags().String("link", "", "job posting URL")
	appsAddCmd.Flags().String("date", "", "applied date (YYYY-MM-DD, default today)")
	appsAddCmd.Flags().String("notes", "", "free-form notes")
	appsAddCmd.Flags().String("status", "", "initial status (default Applied)")
	appsFollowupsCmd.Flags().Int("days", 3, "days since applying before a follow-up is due")
	appsCmd.AddCommand(appsListCmd, appsAddCmd, appsStatusCmd, appsDeleteCmd, appsFollowupsCmd, appsStatsCmd)
}

// --- interview ---

var interviewCmd = &cobra.Command{
	Use:   "interview",
	Short: "Schedule and review interviews",
}

var interviewSetCmd = &cobra.Command{
	Use:   "set <application-id> <YYYY-MM-DD> [HH:MM]",
	Short: "Schedule the interview of an application",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		venue, _ := cmd.Flags().GetString("venue")
		body := map[string]string{"date": args[1], "venue": venue}
		if len(args) == 3 {
			body["time"] = args[2]
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.put(cmd.Context(), "/v1/applications/"+url.PathEscape(args[0])+"/interview", body)
		if err != nil {
			return err
		}
		var iv storage.Interview
		if err := decodeJSON(resp, &iv); err != nil {
			return err
		}
		printSuccess("Interview on %s %s (%s)", iv.Date, iv.Time, iv.Venue)
		return nil
	},
}

var interviewShowCmd = &cobra.Command{
	Use:   "show [application-id]",
	Short: "Show an interview, or all upcoming interviews",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		if len(args) == 1 {
			resp, err := client.get(cmd.Context(), "/v1/applications/"+url.PathEscape(args[0])+"/interview")
			if err != nil {
				return err
			}
			var iv storage.Interview
			if err := decodeJSON(resp, &iv); err != nil {
				return err
			}
			return printJSON(iv)
		}

		resp, err := client.get(cmd.Context(), "/v1/interviews/upcoming")
		if err != nil {
			return err
		}
		var upcoming struct {
			Interviews []storage.ScheduledInterview `json:"interviews"`
		}
		if err := decodeJSON(resp, &upcoming); err != nil {
			return err
		}
		if len(upcoming.Interviews) == 0 {
			printWarning("No upcoming interviews")
			return nil
		}
		tw := newTable("APP\tDATE\tTIME\tCOMPANY\tROLE\tVENUE")
		for _, iv := range upcoming.Interviews {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", iv.ApplicationID, iv.Date, iv.Time, iv.Company, iv.Role, iv.Venue)
		}
		return tw.Flush()
	},
}

var interviewDoneCmd = &cobra.Command{
	Use:   "done <application-id>",
	Short: "Mark an interview completed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		difficulty, _ := cmd.Flags().GetString("difficulty")
		notes, _ := cmd.Flags().GetString("notes")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/v1/applications/"+url.PathEscape(args[0])+"/interview/complete",
			map[string]string{"difficulty": difficulty, "notes": notes})
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, nil); err != nil {
			return err
		}
		printSuccess("Interview marked completed")
		return nil
	},
}

var interviewCalendarCmd = &cobra.Command{
	Use:   "calendar <application-id>",
	Short: "Print a Google Calendar link for the interview",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/v1/applications/"+url.PathEscape(args[0])+"/interview/calendar")
		if err != nil {
			return err
		}
		var link map[string]string
		if err := decodeJSON(resp, &link); err != nil {
			return err
		}
		fmt.Fprintln(out, link["url"])
		return nil
	},
}

func init() {
	interviewSetCmd.Flags().String("venue", "", "where the interview takes place (default Online)")
	interviewDoneCmd.Flags().String("difficulty", "", "Easy, Medium or Hard")
	interviewDoneCmd.Flags().String("notes", "", "how it went")
	interviewCmd.AddCommand(interviewSetCmd, interviewShowCmd, interviewDoneCmd, interviewCalendarCmd)
}

// --- assist ---

var assistCmd = &cobra.Command{
	Use:   "assist",
	Short: "Draft application material with the LLM",
}

// jobBody builds the job part of an assist request from args and flags.
// A single numeric argument names a stored application.
func jobBody(cmd *cobra.Command, args []string) (map[string]any, error) {
	body := map[string]any{}
	switch len(args) {
	case 1:
		var id int64
		if _, err := fmt.Sscan(args[0], &id); err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid application id %q", args[0])
		}
		body["application_id"] = id
	case 2:
		body["company"], body["role"] = args[0], args[1]
	}
	link, _ := cmd.Flags().GetString("link")
	if link != "" {
		body["link"] = link
	}
	descFile, _ := cmd.Flags().GetString("description-file")
	if descFile != "" {
		data, err := os.ReadFile(descFile)
		if err != nil {
			return nil, fmt.Errorf("reading description: %w", err)
		}
		body["description"] = string(data)
	}
	return body, nil
}

func postAssist(ctx context.Context, path string, body map[string]any, v any) error {
	client, err := newAPIClient()
	if err != nil {
		return err
	}
	resp, err := client.post(ctx, path, body)
	if err != nil {
		return err
	}
	return decodeJSON(resp, v)
}

var assistCoverLetterCmd = &cobra.Command{
	Use:   "cover-letter <application-id> | <company> <role>",
	Short: "Draft a cover letter",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := jobBody(cmd, args)
		if err != nil {
			return err
		}
		var draft assist.Draft
		if err := postAssist(cmd.Context(), "/v1/assist/cover-letter", body, &draft); err != nil {
			return err
		}
		if !draft.Generated {
			printWarning("LLM unavailable, using the built-in template")
		}
		fmt.Fprintln(out, draft.Text)
		return nil
	},
}

var assistEmailCmd = &cobra.Command{
	Use:   "email <application-id> | <company> <role>",
	Short: "Draft an application e-mail",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := jobBody(cmd, args)
		if err != nil {
			return err
		}
		body["resume_attached"], _ = cmd.Flags().GetBool("resume")

		var email assist.Email
		if err := postAssist(cmd.Context(), "/v1/assist/email", body, &email); err != nil {
			return err
		}
		if !email.Generated {
			printWarning("LLM unavailable, using the built-in template")
		}
		fmt.Fprintf(out, "Subject: %s\n\n%s\n", email.Subject, email.Body)
		return nil
	},
}

var assistMatchCmd = &cobra.Command{
	Use:   "match [<application-id> | <company> <role>]",
	Short: "Score the profile against a job, or against every application",
	Args:  cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			var batch struct {
				Results []assist.MatchResult `json:"results"`
			}
			if err := postAssist(cmd.Context(), "/v1/assist/match-batch", map[string]any{}, &batch); err != nil {
				return err
			}
			tw := newTable("APP\tSCORE\tCOMPANY\tROLE\tSUMMARY")
			for _, r := range batch.Results {
				fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\n", r.ApplicationID, r.Score, r.Company, r.Role, r.Summary)
			}
			return tw.Flush()
		}

		body, err := jobBody(cmd, args)
		if err != nil {
			return err
		}
		var r assist.MatchResult
		if err := postAssist(cmd.Context(), "/v1/assist/match", body, &r); err != nil {
			return err
		}
		printStatus("Score", "%d/100", r.Score)
		printStatus("Matched", "%s", strings.Join(r.MatchedSkills, ", "))
		printStatus("Missing", "%s", strings.Join(r.MissingSkills, ", "))
		printStatus("Summary", "%s", r.Summary)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{assistCoverLetterCmd, assistEmailCmd, assistMatchCmd} {
		c.Flags().String("link", "", "job posting URL to read the description from")
		c.Flags().String("description-file", "", "file with the job description")
	}
	assistEmailCmd.Flags().Bool("resume", true, "mention the attached resume")
	assistCmd.AddCommand(assistCoverLetterCmd, assistEmailCmd, assistMatchCmd)
}

// --- export ---

var exportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Export applications to an Excel workbook",
	Long: `Export applications and interviews to an Excel workbook.

With --offline the local database is read directly, so the server does
not need to be running.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		offline, _ := cmd.Flags().GetBool("offline")
		if offline {
			return exportOffline(args[0])
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/v1/applications/export")
		if err != nil {
			return err
		}
		if err := checkStatus(resp); err != nil {
			return err
		}
		defer resp.Body.Close()

		path := xlsxPath(args[0])
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if _, err := io.Copy(f, resp.Body); err != nil {
			f.Close()
			return fmt.Errorf("writing %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return err
		}
		printSuccess("Exported to %s", path)
		return nil
	},
}

func xlsxPath(path string) string {
	if !strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		path += ".xlsx"
	}
	return filepath.Clean(path)
}

func exportOffline(path string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	userID := userFlag
	if userID == 0 {
		userID = int64(cfg.CLI.UserID)
	}
	if userID <= 0 {
		return fmt.Errorf("no user: pass --user or set cli.user_id")
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()

	apps, err := store.ListApplicationDetails(userID)
	if err != nil {
		return err
	}
	stats, err := store.ApplicationStats(userID)
	if err != nil {
		return err
	}
	written, err := export.WriteFile(path, apps, stats)
	if err != nil {
		return err
	}
	printSuccess("Exported %d applications to %s", len(apps), written)
	return nil
}

func init() {
	exportCmd.Flags().Bool("offline", false, "read the local database instead of the running server")
}

// --- user ---

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userCreateCmd = &cobra.Command{
	Use:   "create <name> <email>",
	Short: "Create a user and make it the CLI user",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, _ := cmd.Flags().GetString("password")
		if password == "" {
			return fmt.Errorf("--password is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/v1/users", map[string]string{
			"name": args[0], "email": args[1], "password": password,
		})
		if err != nil {
			return err
		}
		var u storage.User
		if err := decodeJSON(resp, &u); err != nil {
			return err
		}
		printSuccess("Created user %d (%s)", u.ID, u.Email)

		if err := config.SetKey("cli.user_id", fmt.Sprint(u.ID)); err != nil {
			printWarning("could not save cli.user_id: %v", err)
		}
		return nil
	},
}

func init() {
	userCreateCmd.Flags().String("password", "", "login password (at least 6 characters)")
	userCmd.AddCommand(userCreateCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(out, "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value. Valid keys: " + strings.Join(config.ValidKeys(), ", "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		if strings.Contains(key, "api_key") || strings.Contains(key, "token") {
			printSuccess("Set %s", key)
		} else {
			printSuccess("Set %s = %s", key, value)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd)
}
