package models

// TimeLayout is the wire format used for every timestamp that flows through
// the pipeline ("2020-06-23 16:55:01"). Source systems report local time
// without a zone, so timestamps are kept as strings and parsed on demand.
const TimeLayout = "2006-01-02 15:04:05"

// DateLayout is the day-granularity form used for window bounds and run arguments.
const DateLayout = "2006-01-02"

// DatePart truncates a TimeLayout timestamp to its date component.
func DatePart(ts string) string {
	if len(ts) > len(DateLayout) {
		return ts[:len(DateLayout)]
	}
	return ts
}

// Tag concepts assigned by the annotation service.
const (
	ConceptIndustry = "产业"
	ConceptDomain   = "产业领域"
	ConceptEvent    = "事件"
)

// Tag is a classification label attached to a document. A document may carry
// several tags of the same concept; list order is meaningful (first match wins
// when a scalar field is derived from the list).
type Tag struct {
	Name        string `json:"name" bson:"name"`
	ConceptID   string `json:"conceptId" bson:"conceptId"`
	ConceptName string `json:"conceptName" bson:"conceptName"`
}

// ExternalReference links an entity to its record in the company knowledge base.
type ExternalReference struct {
	ID   string `json:"id" bson:"id"`
	Name string `json:"name" bson:"name"`
}

// Entity is a linked organization mention. The first entity in a document's
// list is its primary company.
type Entity struct {
	Name              string            `json:"name" bson:"name"`
	Type              string            `json:"type" bson:"type"`
	ExternalReference ExternalReference `json:"externalReference" bson:"externalReference"`
}

// RawNews is a crawled article before annotation, as stored by the collectors.
type RawNews struct {
	ID          string   `json:"doc_id" bson:"_id"`
	Source      string   `json:"source" bson:"source"`
	SearchKey   string   `json:"search_key" bson:"search_key"`
	URL         string   `json:"url" bson:"url"`
	Title       string   `json:"title" bson:"title"`
	PublishTime string   `json:"publish_time" bson:"publish_time"`
	CrawlTime   string   `json:"crawl_time" bson:"crawl_time"`
	Content     string   `json:"content" bson:"content"`
	HTML        string   `json:"html" bson:"html"`
	ImgURL      []string `json:"img_url" bson:"img_url"`
}

// Document is the canonical annotated record persisted to the document store.
// Key is stable across re-ingestion of the same source item; re-ingesting the
// same key overwrites (delete then insert), never merges.
type Document struct {
	Key         string   `json:"_key" bson:"_id"`
	Title       string   `json:"title" bson:"title"`
	Content     string   `json:"content" bson:"content"`
	Abstract    string   `json:"abstract" bson:"abstract"`
	URL         string   `json:"url" bson:"url"`
	HTML        string   `json:"html" bson:"html"`
	ImgURL      []string `json:"img_url" bson:"img_url"`
	Source      string   `json:"source" bson:"source"`
	PublishTime string   `json:"publish_time" bson:"publish_time"`
	CreateTime  string   `json:"create_time" bson:"create_time"`
	UpdateTime  string   `json:"update_time" bson:"update_time"`
	Tags        []Tag    `json:"tags" bson:"tags"`
	Entities    []Entity `json:"entities" bson:"entities"`
}

// PrimaryCompany returns the name of the document's first entity, or "" when
// the document carries no entities.
func (d Document) PrimaryCompany() string {
	if len(d.Entities) == 0 {
		return ""
	}
	return d.Entities[0].Name
}

// EventType returns the name of the first tag with the event concept, or "".
func (d Document) EventType() string {
	for _, tag := range d.Tags {
		if tag.ConceptName == ConceptEvent {
			return tag.Name
		}
	}
	return ""
}

// Fragment is a sub-event sentence extracted from a document. Fragments are
// deduplicated independently of their parent document, against a 7-day
// trailing window keyed by event type and entity overlap.
type Fragment struct {
	Key         string   `json:"_key" bson:"_id"`
	DocID       string   `json:"doc_id" bson:"doc_id"`
	Title       string   `json:"title" bson:"title"`
	Section     string   `json:"section" bson:"section"`
	EventType   string   `json:"event_type" bson:"event_type"`
	Entities    []Entity `json:"entities" bson:"entities"`
	ActionWords []string `json:"action_words" bson:"action_words"`
	EventDate   string   `json:"event_date" bson:"event_date"`
	PublishTime string   `json:"publish_time" bson:"publish_time"`
	CreateTime  string   `json:"create_time" bson:"create_time"`
	UpdateTime  string   `json:"update_time" bson:"update_time"`
}
