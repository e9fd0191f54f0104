package types

// NewsroomArticle is one tagged article from the newsroom service.
// Articles are immutable once fetched.
type NewsroomArticle struct {
	Headline      string   `json:"headline"`
	Date          string   `json:"date"`
	URL           string   `json:"url"`
	Source        string   `json:"source"`
	TopicTags     []string `json:"core_topic_tags"`
	GeographyTags []string `json:"geography_tags"`
	CountryTags   []string `json:"country_tags"`
}

// PrimaryTopic returns the first topic tag, or "Uncategorized".
func (a NewsroomArticle) PrimaryTopic() string {
	if len(a.TopicTags) > 0 && a.TopicTags[0] != "" {
		return a.TopicTags[0]
	}
	return "Uncategorized"
}
