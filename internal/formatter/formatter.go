// package formatter renders reports, account lists, and marketplace results
// as styled text, JSON, or CSV
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"discosync/internal/models"
)

// struct palette is a simple stylesheet built with named [lipgloss.Style] fields
type palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	dim   lipgloss.Style
}

var styles = newPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

func newPalette(t, s, e, w, d string) *palette {
	return &palette{
		title: newBold(t),
		ok:    newBold(s),
		err:   newBold(e),
		warn:  newStyle(w),
		dim:   newStyle(d),
	}
}

func newStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func newBold(fg string) lipgloss.Style {
	return newStyle(fg).Bold(true)
}

// ToJSON marshals any output value with indentation for terminal display.
func ToJSON(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return data, nil
}

// actionGlyph maps an action kind to its one-character marker and style.
func actionGlyph(kind models.ActionKind) string {
	switch kind {
	case models.ActionAdd:
		return styles.ok.Render("+")
	case models.ActionRemove:
		return styles.err.Render("-")
	case models.ActionSkip:
		return styles.dim.Render("=")
	default:
		return styles.warn.Render("!")
	}
}

// RenderReport renders a sync report: one line per action, then a summary.
func RenderReport(report *models.SyncReport, dryRun bool) string {
	var b strings.Builder

	if dryRun {
		b.WriteString(styles.warn.Render("Dry run: no changes were applied") + "\n\n")
	}

	for _, action := range report.Actions {
		b.WriteString(fmt.Sprintf("%s %s - %s", actionGlyph(action.Kind), action.DisplayArtist(), action.DisplayTitle()))
		if action.ReleaseID > 0 {
			b.WriteString(styles.dim.Render(fmt.Sprintf(" (release %d)", action.ReleaseID)))
		}
		if action.Reason != "" {
			b.WriteString(styles.dim.Render(" " + action.Reason))
		}
		if action.Err != "" {
			b.WriteString(styles.err.Render(" " + action.Err))
		}
		b.WriteString("\n")
	}

	summary := fmt.Sprintf("%d input, %d added, %d removed, %d skipped, %d errors",
		report.TotalInput, report.Added, report.Removed, report.Skipped, report.Errors)
	b.WriteString("\n")
	if report.Success() {
		b.WriteString(styles.ok.Render(summary))
	} else {
		b.WriteString(styles.err.Render(summary))
	}
	b.WriteString("\n")
	return b.String()
}

// cacheNote annotates list output served from the local cache.
func cacheNote(fromCache bool) string {
	if fromCache {
		return styles.dim.Render(" (cached)")
	}
	return ""
}

// RenderWantlist renders the wantlist as a numbered list.
func RenderWantlist(items []models.WantlistItem, fromCache bool) string {
	var b strings.Builder
	b.WriteString(styles.title.Render(fmt.Sprintf("Wantlist: %d items", len(items))) + cacheNote(fromCache) + "\n\n")
	for i, item := range items {
		b.WriteString(fmt.Sprintf("%d. %s - %s", i+1, item.Artist, item.Title))
		b.WriteString(styles.dim.Render(itemSuffix(item.Format, item.Year, item.ReleaseID)))
		if item.Notes != "" {
			b.WriteString(styles.dim.Render(" " + item.Notes))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// RenderCollection renders the collection as a numbered list.
func RenderCollection(items []models.CollectionItem, fromCache bool) string {
	var b strings.Builder
	b.WriteString(styles.title.Render(fmt.Sprintf("Collection: %d items", len(items))) + cacheNote(fromCache) + "\n\n")
	for i, item := range items {
		b.WriteString(fmt.Sprintf("%d. %s - %s", i+1, item.Artist, item.Title))
		b.WriteString(styles.dim.Render(itemSuffix(item.Format, item.Year, item.ReleaseID)))
		b.WriteString("\n")
	}
	return b.String()
}

func itemSuffix(format string, year, releaseID int) string {
	var parts []string
	if format != "" {
		parts = append(parts, format)
	}
	if year > 0 {
		parts = append(parts, strconv.Itoa(year))
	}
	parts = append(parts, fmt.Sprintf("release %d", releaseID))
	return " [" + strings.Join(parts, ", ") + "]"
}

// RenderMarketplace renders marketplace results, cheapest first.
func RenderMarketplace(results []models.MarketplaceResult) string {
	var b strings.Builder
	for i, r := range results {
		b.WriteString(fmt.Sprintf("%d. %s - %s", i+1, r.Artist, r.Title))

		var meta []string
		if r.Format != "" {
			meta = append(meta, r.Format)
		}
		if r.Country != "" {
			meta = append(meta, r.Country)
		}
		if r.Year > 0 {
			meta = append(meta, strconv.Itoa(r.Year))
		}
		if len(meta) > 0 {
			b.WriteString(styles.dim.Render(" [" + strings.Join(meta, ", ") + "]"))
		}
		b.WriteString("\n")

		if r.LowestPrice != nil {
			b.WriteString(fmt.Sprintf("   %s from %s\n",
				fmt.Sprintf("%d for sale", r.NumForSale),
				styles.ok.Render(fmt.Sprintf("%.2f %s", *r.LowestPrice, r.Currency))))
		} else {
			b.WriteString("   " + styles.dim.Render("no listings") + "\n")
		}

		if r.Label != "" || r.CatNo != "" {
			b.WriteString(styles.dim.Render(fmt.Sprintf("   %s %s", r.Label, r.CatNo)) + "\n")
		}
		if r.CommunityHave > 0 || r.CommunityWant > 0 {
			b.WriteString(styles.dim.Render(fmt.Sprintf("   have %d / want %d", r.CommunityHave, r.CommunityWant)) + "\n")
		}
		for _, grade := range suggestionOrder {
			if price, ok := r.PriceSuggestions[grade]; ok {
				b.WriteString(styles.dim.Render(fmt.Sprintf("   %s: %.2f", grade, price)) + "\n")
			}
		}
	}
	return b.String()
}

// suggestionOrder fixes the display order of condition grades, best first.
var suggestionOrder = []string{
	"Mint (M)",
	"Near Mint (NM or M-)",
	"Very Good Plus (VG+)",
	"Very Good (VG)",
	"Good Plus (G+)",
	"Good (G)",
	"Fair (F)",
	"Poor (P)",
}

// WantlistToCSV converts the wantlist to CSV with columns: Artist, Album, Format, Year, ReleaseID, Notes
func WantlistToCSV(items []models.WantlistItem) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Artist", "Album", "Format", "Year", "ReleaseID", "Notes"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, item := range items {
		record := []string{
			item.Artist,
			item.Title,
			item.Format,
			yearField(item.Year),
			strconv.Itoa(item.ReleaseID),
			item.Notes,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// CollectionToCSV converts the collection to CSV with columns: Artist, Album, Format, Year, ReleaseID, InstanceID, FolderID
func CollectionToCSV(items []models.CollectionItem) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Artist", "Album", "Format", "Year", "ReleaseID", "InstanceID", "FolderID"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, item := range items {
		record := []string{
			item.Artist,
			item.Title,
			item.Format,
			yearField(item.Year),
			strconv.Itoa(item.ReleaseID),
			strconv.Itoa(item.InstanceID),
			strconv.Itoa(item.FolderID),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

func yearField(year int) string {
	if year == 0 {
		return ""
	}
	return strconv.Itoa(year)
}
