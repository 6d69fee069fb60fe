package businessflow

import (
	"slices"

	"github.com/amirphl/Orochi-Mail/models"
)

// AudienceSelection is the audience section of a draft
type AudienceSelection struct {
	CategoryIDs []string
	Summary     AudienceSummary
}

// CampaignDraft is the in-memory working copy of a campaign. Each setter
// replaces one section with a fresh copy and leaves the others untouched.
// It performs no validation.
type CampaignDraft struct {
	audience   *AudienceSelection
	message    *models.CampaignMessage
	attachment *FileAttachment
	schedule   *models.CampaignSchedule
}

// NewCampaignDraft returns an empty draft using the inline editor
func NewCampaignDraft() *CampaignDraft {
	return &CampaignDraft{
		audience: &AudienceSelection{Summary: AudienceSummary{Names: []string{}}},
		message:  &models.CampaignMessage{ContentSource: models.ContentSourceInlineEditor},
		schedule: &models.CampaignSchedule{},
	}
}

// DraftFromRecord builds a draft mirroring a persisted campaign
func DraftFromRecord(c *models.Campaign) *CampaignDraft {
	d := NewCampaignDraft()
	d.audience = &AudienceSelection{
		CategoryIDs: slices.Clone([]string(c.AudienceCategoryIDs)),
		Summary: AudienceSummary{
			RecipientCount: c.RecipientCount,
			HealthScore:    c.HealthScore,
			Names:          append([]string{}, c.AudienceNames...),
		},
	}
	if c.Spec.Message != nil {
		d.message = cloneMessage(*c.Spec.Message)
	}
	if c.Spec.Schedule != nil {
		s := *c.Spec.Schedule
		d.schedule = &s
	}
	return d
}

func (d *CampaignDraft) Audience() *AudienceSelection { return d.audience }
func (d *CampaignDraft) Message() *models.CampaignMessage { return d.message }
func (d *CampaignDraft) Attachment() *FileAttachment { return d.attachment }
func (d *CampaignDraft) Schedule() *models.CampaignSchedule { return d.schedule }

// SetAudience replaces the audience section
func (d *CampaignDraft) SetAudience(selection AudienceSelection) {
	d.audience = &AudienceSelection{
		CategoryIDs: slices.Clone(selection.CategoryIDs),
		Summary: AudienceSummary{
			RecipientCount: selection.Summary.RecipientCount,
			HealthScore:    selection.Summary.HealthScore,
			Names:          append([]string{}, selection.Summary.Names...),
		},
	}
}

// SelectAudience replaces the audience section with ids resolved against categories
func (d *CampaignDraft) SelectAudience(ids []string, categories []models.AudienceCategory) {
	d.SetAudience(AudienceSelection{CategoryIDs: ids, Summary: Aggregate(ids, categories)})
}

// SetMessage replaces the message section, including any pending HTML attachment
func (d *CampaignDraft) SetMessage(message models.CampaignMessage, attachment *FileAttachment) {
	d.message = cloneMessage(message)
	if attachment != nil {
		a := FileAttachment{Filename: attachment.Filename, Content: slices.Clone(attachment.Content)}
		d.attachment = &a
	} else {
		d.attachment = nil
	}
}

// SetSchedule replaces the schedule section
func (d *CampaignDraft) SetSchedule(schedule models.CampaignSchedule) {
	d.schedule = &schedule
}

func cloneMessage(m models.CampaignMessage) *models.CampaignMessage {
	out := m
	if m.HTMLFileID != nil {
		id := *m.HTMLFileID
		out.HTMLFileID = &id
	}
	return &out
}
