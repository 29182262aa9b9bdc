package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/karigar/internal/api"
	"github.com/kalambet/karigar/internal/config"
	"github.com/kalambet/karigar/internal/directory"
	"github.com/kalambet/karigar/internal/seed"
)

// --- review ---

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Leave reviews for workers",
}

var reviewAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Append a review to a worker",
	Long: `Append a review to the first worker whose fields match --match.

Examples:
  karigar review add --match PhoneNumber=+91-98450-11111 --rating 4 --comment "On time"
  karigar review add --bin 690b9427d0ea881f40d61cd1 --match Name=Ravi --match Category=Plumber`,
	RunE: func(cmd *cobra.Command, args []string) error {
		match, _ := cmd.Flags().GetStringToString("match")
		binID, _ := cmd.Flags().GetString("bin")
		user, _ := cmd.Flags().GetString("user")
		rating, _ := cmd.Flags().GetFloat64("rating")
		comment, _ := cmd.Flags().GetString("comment")
		date, _ := cmd.Flags().GetString("date")

		if len(match) == 0 {
			return fmt.Errorf("at least one --match field=value is required")
		}
		if rating < 0 || rating > 5 {
			return fmt.Errorf("--rating must be between 1 and 5")
		}

		req, err := buildReviewRequest(binID, match, directory.Review{
			User:    user,
			Rating:  rating,
			Comment: comment,
			Date:    date,
		}.WithDefaults(time.Now()))
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		res, err := submitReview(cmd.Context(), client, req)
		if err != nil {
			return err
		}
		if !res.OK {
			return fmt.Errorf("review not stored (%s): %s", res.Stage, res.Message)
		}
		printSuccess("Review stored")
		return nil
	},
}

func init() {
	reviewAddCmd.Flags().StringToString("match", nil, "worker field to match, as field=value (repeatable)")
	reviewAddCmd.Flags().String("bin", "", "directory bin id (defaults to jsonbin.bin_id)")
	reviewAddCmd.Flags().String("user", "", "reviewer name (default Anon)")
	reviewAddCmd.Flags().Float64("rating", 0, "rating 1-5 (default 5)")
	reviewAddCmd.Flags().String("comment", "", "review text")
	reviewAddCmd.Flags().String("date", "", "review date YYYY-MM-DD (default today)")
	reviewCmd.AddCommand(reviewAddCmd)
}

func buildReviewRequest(binID string, match map[string]string, review directory.Review) (api.ReviewRequest, error) {
	identifier := make(map[string]json.RawMessage, len(match))
	for k, v := range match {
		raw, err := json.Marshal(v)
		if err != nil {
			return api.ReviewRequest{}, err
		}
		identifier[k] = raw
	}
	raw, err := json.Marshal(review)
	if err != nil {
		return api.ReviewRequest{}, fmt.Errorf("encoding review: %w", err)
	}
	return api.ReviewRequest{BinID: binID, Identifier: identifier, Review: raw}, nil
}

// submitReview posts req and decodes the result body, which the server
// sends for failures as well as successes.
func submitReview(ctx context.Context, client *apiClient, req api.ReviewRequest) (directory.Result, error) {
	resp, err := client.post(ctx, "/api/review", req)
	if err != nil {
		return directory.Result{}, err
	}
	defer resp.Body.Close()

	var res directory.Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return directory.Result{}, fmt.Errorf("server returned %d: %w", resp.StatusCode, err)
	}
	if !res.OK && res.Message == "" {
		res.Message = fmt.Sprintf("server returned %d", resp.StatusCode)
	}
	return res, nil
}

// --- workers ---

var workersCmd = &cobra.Command{
	Use:   "workers",
	Short: "Search or import the worker directory",
}

var workersSearchCmd = &cobra.Command{
	Use:   "search",
	Short: "List workers of a category near an address",
	RunE: func(cmd *cobra.Command, args []string) error {
		category, _ := cmd.Flags().GetString("category")
		address, _ := cmd.Flags().GetString("address")
		binID, _ := cmd.Flags().GetString("bin")
		asJSON, _ := cmd.Flags().GetBool("json")

		if category == "" || address == "" {
			return fmt.Errorf("--category and --address are required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		q := url.Values{}
		q.Set("category", category)
		q.Set("address", address)
		if binID != "" {
			q.Set("binId", binID)
		}
		resp, err := client.get(cmd.Context(), "/api/workers?"+q.Encode())
		if err != nil {
			return err
		}

		var results []api.SearchResult
		if err := decodeJSON(resp, &results); err != nil {
			return err
		}

		if asJSON {
			return printJSON(results)
		}
		if len(results) == 0 {
			fmt.Println("No workers found.")
			return nil
		}
		for _, r := range results {
			fmt.Printf("%s  %s  %s  %s\n",
				colorize(colorBold, r.Worker.Text("Name")),
				r.Worker.Text("PhoneNumber"),
				r.Worker.Text("Address"),
				ratingLabel(r),
			)
		}
		return nil
	},
}

var workersImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Replace the directory with workers from a YAML or JSON file",
	Long: `Replace the whole directory document with the workers listed in a file.

The file must hold a list of mappings. --shape chooses how the list is
stored: bare (the document is the list), workers or data (the list is
wrapped in an object under that key).

Examples:
  karigar workers import --file workers.yaml
  karigar workers import --file workers.json --shape data --bin 690b9427d0ea881f40d61cd1`,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		shapeName, _ := cmd.Flags().GetString("shape")
		binID, _ := cmd.Flags().GetString("bin")

		if file == "" {
			return fmt.Errorf("--file is required")
		}
		shape, err := directory.ParseShape(shapeName)
		if err != nil {
			return err
		}

		list, err := seed.LoadFile(file)
		if err != nil {
			return err
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if binID == "" {
			binID = cfg.JSONBin.BinID
		}
		if binID == "" {
			return fmt.Errorf("--bin is required when jsonbin.bin_id is not configured")
		}

		printStep("Writing %d workers to %s (%s)", len(list), binID, shape)
		if _, err := seed.Import(cmd.Context(), newDocumentStore(cfg), binID, list, shape); err != nil {
			return fmt.Errorf("import failed: %w", err)
		}
		printSuccess("Imported %d workers", len(list))
		return nil
	},
}

func init() {
	workersSearchCmd.Flags().String("category", "", "worker category, e.g. Plumber")
	workersSearchCmd.Flags().String("address", "", "address or locality")
	workersSearchCmd.Flags().String("bin", "", "directory bin id (defaults to jsonbin.bin_id)")
	workersSearchCmd.Flags().Bool("json", false, "print results as JSON")

	workersImportCmd.Flags().String("file", "", "YAML or JSON file with a list of workers")
	workersImportCmd.Flags().String("shape", "workers", "document shape: bare, workers or data")
	workersImportCmd.Flags().String("bin", "", "directory bin id (defaults to jsonbin.bin_id)")

	workersCmd.AddCommand(workersSearchCmd)
	workersCmd.AddCommand(workersImportCmd)
}

func ratingLabel(r api.SearchResult) string {
	if r.AverageRating == nil {
		return "no reviews"
	}
	noun := "reviews"
	if r.ReviewCount == 1 {
		noun = "review"
	}
	return fmt.Sprintf("%s (%d %s)", colorize(colorYellow, fmt.Sprintf("%.1f", *r.AverageRating)), r.ReviewCount, noun)
}

// --- journal ---

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect recorded review attempts",
}

var journalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent review attempts",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		binID, _ := cmd.Flags().GetString("bin")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		q := url.Values{}
		q.Set("limit", fmt.Sprint(limit))
		if binID != "" {
			q.Set("binId", binID)
		}
		resp, err := client.get(cmd.Context(), "/journal?"+q.Encode())
		if err != nil {
			return err
		}

		var attempts []struct {
			ID         string    `json:"id"`
			CreatedAt  time.Time `json:"created_at"`
			DocumentID string    `json:"document_id"`
			Source     string    `json:"source"`
			OK         bool      `json:"ok"`
			Stage      string    `json:"stage"`
			Message    string    `json:"message"`
		}
		if err := decodeJSON(resp, &attempts); err != nil {
			return err
		}

		if len(attempts) == 0 {
			fmt.Println("No review attempts recorded.")
			return nil
		}

		for _, a := range attempts {
			outcome := colorize(colorGreen, "ok")
			if !a.OK {
				outcome = colorize(colorRed, "failed at "+a.Stage)
			}
			fmt.Printf("%s  %s  %-4s  %s  %s\n",
				colorize(colorCyan, shortID(a.ID)),
				a.CreatedAt.Local().Format(time.DateTime),
				a.Source,
				a.DocumentID,
				outcome,
			)
		}
		return nil
	},
}

func init() {
	journalListCmd.Flags().Int("limit", 20, "maximum number of attempts to list")
	journalListCmd.Flags().String("bin", "", "only show attempts for this bin id")
	journalCmd.AddCommand(journalListCmd)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
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

		keys := config.ShowAll(cfg)
		sort.Slice(keys, func(i, j int) bool { return keys[i].Key < keys[j].Key })
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
