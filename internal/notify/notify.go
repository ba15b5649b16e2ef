// Package notify builds the daily news digest and delivers it to the
// configured chat groups over HMAC-signed webhooks.
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/liangzhi-data/newspipe/internal/essink"
	"github.com/liangzhi-data/newspipe/internal/models"
)

// PushableEvents lists the event types worth pushing to subscribers.
var PushableEvents = []string{
	"企业合作", "投融资", "中标招标", "领导考察", "公司上市",
	"企业获奖", "高管变动", "会议动态", "企业收购",
}

const (
	defaultItemPic   = "https://ss1.bdstatic.com/70cFvXSh_Q1YnxGkpoWK1HF6hhy/it/u=3448042000,668451117&fm=26&gp=0.jpg"
	defaultHeaderPic = "https://ss0.bdstatic.com/70cFvHSh_Q1YnxGkpoWK1HF6hhy/it/u=4257704521,3639258495&fm=15&gp=0.jpg"
)

// Link is one feed-card entry.
type Link struct {
	Title      string `json:"title"`
	MessageURL string `json:"messageURL,omitempty"`
	PicURL     string `json:"picURL"`
}

// Group is one delivery target: a webhook endpoint and its signing secret.
type Group struct {
	Name    string
	Webhook string
	Secret  string
}

// SignURL appends the millisecond timestamp and the HMAC-SHA256 signature the
// webhook endpoint verifies: sign = urlencode(base64(hmac(secret, "ts\nsecret"))).
func SignURL(webhook, secret string, now time.Time) string {
	ts := strconv.FormatInt(now.UnixMilli(), 10)
	stringToSign := ts + "\n" + secret

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(stringToSign))
	sign := url.QueryEscape(base64.StdEncoding.EncodeToString(mac.Sum(nil)))

	return fmt.Sprintf("%s&timestamp=%s&sign=%s", webhook, ts, sign)
}

// HeaderTitle renders the digest header for a run date, e.g. "2020-08-06" →
// "量知招商每日资讯: 08月06日".
func HeaderTitle(dateStr string) string {
	suffix := dateStr
	if len(dateStr) > 5 {
		suffix = dateStr[5:]
	}
	return "量知招商每日资讯: " + strings.Replace(suffix+"日", "-", "月", 1)
}

// Digest is the selected content plus the ids to flip to pushed.
type Digest struct {
	Links     []Link
	PickedIDs []string
	Companies map[string]struct{}
}

// LogoLookup resolves a company id to its logo URL; "" keeps the default.
type LogoLookup func(ctx context.Context, companyID string) (string, error)

// BuildDigest selects up to limit pushable items from the hits, newest
// publish time first. detailURL is a printf template receiving the record id.
func BuildDigest(ctx context.Context, hits []essink.Hit, detailURL string, limit int, logoFor LogoLookup, log *slog.Logger) Digest {
	sorted := make([]essink.Hit, len(hits))
	copy(sorted, hits)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Source.PublishTime > sorted[j].Source.PublishTime
	})

	digest := Digest{Companies: make(map[string]struct{})}

	for _, hit := range sorted {
		event := pushableEvent(hit.Source.Tags)
		if event == "" {
			continue
		}

		link := Link{
			Title:      "【" + event + "】" + hit.Source.Title,
			MessageURL: fmt.Sprintf(detailURL, hit.ID),
			PicURL:     defaultItemPic,
		}

		for _, entity := range hit.Source.Entities {
			digest.Companies[entity.ExternalReference.Name] = struct{}{}
			if logoFor == nil {
				continue
			}
			companyID := entity.ExternalReference.ID
			if i := strings.Index(companyID, "/"); i >= 0 {
				companyID = companyID[i+1:]
			}
			logo, err := logoFor(ctx, companyID)
			if err != nil {
				log.Error("company logo lookup failed",
					slog.String("company_id", companyID),
					slog.Any("err", err),
				)
				continue
			}
			if logo != "" {
				link.PicURL = logo
			}
		}

		digest.Links = append(digest.Links, link)
		digest.PickedIDs = append(digest.PickedIDs, hit.ID)
		if len(digest.Links) >= limit {
			break
		}
	}

	return digest
}

func pushableEvent(tags []models.Tag) string {
	for _, tag := range tags {
		if tag.ConceptName != models.ConceptEvent {
			continue
		}
		for _, event := range PushableEvents {
			if tag.Name == event {
				return tag.Name
			}
		}
	}
	return ""
}

// Sender delivers feed cards to webhook groups.
type Sender struct {
	http *http.Client
	log  *slog.Logger
	now  func() time.Time
}

// NewSender builds a Sender.
func NewSender(log *slog.Logger) *Sender {
	return &Sender{
		http: &http.Client{Timeout: 30 * time.Second},
		log:  log,
		now:  time.Now,
	}
}

type feedCard struct {
	MsgType  string `json:"msgtype"`
	FeedCard struct {
		Links []Link `json:"links"`
	} `json:"feedCard"`
}

type webhookResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// Send posts the digest (header first, then items) to one group.
func (s *Sender) Send(ctx context.Context, group Group, header Link, links []Link) error {
	card := feedCard{MsgType: "feedCard"}
	card.FeedCard.Links = append([]Link{header}, links...)

	payload, err := json.Marshal(card)
	if err != nil {
		return fmt.Errorf("marshal feed card: %w", err)
	}

	signed := SignURL(group.Webhook, group.Secret, s.now())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, signed, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook %s: %w", group.Name, err)
	}
	defer res.Body.Close()

	var parsed webhookResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("decode webhook response %s: %w", group.Name, err)
	}
	if parsed.ErrCode != 0 {
		return fmt.Errorf("webhook %s rejected: code=%d msg=%s", group.Name, parsed.ErrCode, parsed.ErrMsg)
	}
	return nil
}

// DefaultHeader builds the digest header link for a run date.
func DefaultHeader(dateStr string) Link {
	return Link{Title: HeaderTitle(dateStr), PicURL: defaultHeaderPic}
}
