package discogs

import (
	"bytes"
	"strconv"
	"strings"

	"discosync/internal/parsers"
)

// FlexInt decodes JSON numbers that the API sometimes serves as strings
// (search-result years in particular). Empty or unparseable values decode to 0.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(string(data))
	if err != nil {
		*f = 0
		return nil
	}
	*f = FlexInt(n)
	return nil
}

// pagination mirrors the pagination block every list endpoint returns.
type pagination struct {
	Page  int `json:"page"`
	Pages int `json:"pages"`
	Items int `json:"items"`
}

// searchResponse mirrors GET /database/search.
type searchResponse struct {
	Pagination pagination     `json:"pagination"`
	Results    []searchResult `json:"results"`
}

type searchResult struct {
	ID       int      `json:"id"`
	Type     string   `json:"type"`
	MasterID int      `json:"master_id"`
	Title    string   `json:"title"`
	Year     FlexInt  `json:"year"`
	Format   []string `json:"format"`
	Country  string   `json:"country"`
}

// Hit is one parsed search result. Exactly one of ReleaseID/MasterID is the
// row's own id: grouping-level rows carry a MasterID only, release-level rows
// carry a ReleaseID and possibly the master they belong to.
type Hit struct {
	ReleaseID int
	MasterID  int
	Artist    string
	Title     string
	Year      int
	Formats   []string
	Country   string
}

// splitTitle separates the API's combined "Artist - Album" title.
func splitTitle(title string) (artist, album string) {
	if i := strings.Index(title, " - "); i >= 0 {
		return title[:i], title[i+3:]
	}
	return "", title
}

func (r searchResult) toHit() Hit {
	artist, album := splitTitle(r.Title)
	hit := Hit{
		Artist:  artist,
		Title:   album,
		Year:    int(r.Year),
		Formats: r.Format,
		Country: r.Country,
	}
	if r.Type == "master" {
		hit.MasterID = r.ID
	} else {
		hit.ReleaseID = r.ID
		hit.MasterID = r.MasterID
	}
	return hit
}

// masterResponse mirrors GET /masters/{id}.
type masterResponse struct {
	ID          int `json:"id"`
	MainRelease int `json:"main_release"`
}

// versionsResponse mirrors GET /masters/{id}/versions.
type versionsResponse struct {
	Pagination pagination `json:"pagination"`
	Versions   []Version  `json:"versions"`
}

// Version is one pressing listed under a master.
type Version struct {
	ID           int      `json:"id"`
	Title        string   `json:"title"`
	Format       string   `json:"format"`
	MajorFormats []string `json:"major_formats"`
	Country      string   `json:"country"`
	Released     FlexInt  `json:"released"`
}

// MatchesFormat reports whether the version is available in the given
// canonical format, checking major_formats first and the free-form format
// string as a fallback.
func (v Version) MatchesFormat(format string) bool {
	want := strings.ToLower(format)
	for _, f := range v.MajorFormats {
		if strings.Contains(strings.ToLower(f), want) {
			return true
		}
	}
	if len(v.MajorFormats) == 0 && v.Format != "" {
		return strings.Contains(strings.ToLower(v.Format), want)
	}
	return false
}

// Release mirrors the fields of GET /releases/{id} the tool consumes.
type Release struct {
	ID       int                    `json:"id"`
	MasterID int                    `json:"master_id"`
	Title    string                 `json:"title"`
	Year     FlexInt                `json:"year"`
	Country  string                 `json:"country"`
	Artists  []parsers.ArtistCredit `json:"artists"`
	Formats  []releaseFormat        `json:"formats"`
	Labels   []releaseLabel         `json:"labels"`
	Community struct {
		Have int `json:"have"`
		Want int `json:"want"`
	} `json:"community"`
}

type releaseFormat struct {
	Name         string   `json:"name"`
	Descriptions []string `json:"descriptions"`
}

type releaseLabel struct {
	Name  string `json:"name"`
	CatNo string `json:"catno"`
}

// ArtistName returns the joined artist credit of the release.
func (r *Release) ArtistName() string {
	return parsers.JoinArtists(r.Artists)
}

// FormatName returns the primary format name, empty if the API sent none.
func (r *Release) FormatName() string {
	if len(r.Formats) == 0 {
		return ""
	}
	return r.Formats[0].Name
}

// FormatDetails returns the comma-joined descriptions of the primary format.
func (r *Release) FormatDetails() string {
	if len(r.Formats) == 0 {
		return ""
	}
	return strings.Join(r.Formats[0].Descriptions, ", ")
}

// Label returns the primary label name and catalog number.
func (r *Release) Label() (name, catno string) {
	if len(r.Labels) == 0 {
		return "", ""
	}
	return r.Labels[0].Name, r.Labels[0].CatNo
}

// Price mirrors the API's {value, currency} money object.
type Price struct {
	Value    float64 `json:"value"`
	Currency string  `json:"currency"`
}

// Stats mirrors GET /marketplace/stats/{release_id}.
type Stats struct {
	NumForSale  int    `json:"num_for_sale"`
	LowestPrice *Price `json:"lowest_price"`
}

// Lowest returns the lowest listed price, or nil when nothing is for sale.
func (s *Stats) Lowest() *float64 {
	if s.LowestPrice == nil {
		return nil
	}
	v := s.LowestPrice.Value
	return &v
}

// User mirrors GET /oauth/identity.
type User struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
}

// basicInformation is the release summary embedded in wantlist and
// collection entries.
type basicInformation struct {
	ID       int                    `json:"id"`
	MasterID int                    `json:"master_id"`
	Title    string                 `json:"title"`
	Year     FlexInt                `json:"year"`
	Artists  []parsers.ArtistCredit `json:"artists"`
	Formats  []releaseFormat        `json:"formats"`
}

func (b basicInformation) formatName() string {
	if len(b.Formats) == 0 {
		return ""
	}
	return b.Formats[0].Name
}

// wantsResponse mirrors GET /users/{username}/wants.
type wantsResponse struct {
	Pagination pagination `json:"pagination"`
	Wants      []struct {
		ID               int              `json:"id"`
		Notes            string           `json:"notes"`
		BasicInformation basicInformation `json:"basic_information"`
	} `json:"wants"`
}

// collectionResponse mirrors GET /users/{username}/collection/folders/{id}/releases.
type collectionResponse struct {
	Pagination pagination `json:"pagination"`
	Releases   []struct {
		InstanceID       int              `json:"instance_id"`
		FolderID         int              `json:"folder_id"`
		ID               int              `json:"id"`
		BasicInformation basicInformation `json:"basic_information"`
	} `json:"releases"`
}

// instanceResponse mirrors the response of adding a release to a folder.
type instanceResponse struct {
	InstanceID int `json:"instance_id"`
}

// suggestionsResponse mirrors GET /marketplace/price_suggestions/{release_id}:
// a map of condition grade name to money object.
type suggestionsResponse map[string]Price

func (s suggestionsResponse) toMap() map[string]float64 {
	if len(s) == 0 {
		return nil
	}
	out := make(map[string]float64, len(s))
	for grade, p := range s {
		out[grade] = p.Value
	}
	return out
}
