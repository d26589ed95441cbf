package firestore

import (
	"encoding/json"
	"fmt"

	"github.com/phrazzld/studyguide-api/internal/domain"
)

// toDocument converts a guide into the field map stored in Firestore,
// keyed by the guide's JSON field names.
func toDocument(guide *domain.Guide) (map[string]any, error) {
	data, err := json.Marshal(guide)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	// Keep the sort key an integer rather than a JSON float.
	doc["created_at"] = guide.CreatedAt
	return doc, nil
}

// fromDocument decodes stored fields back into a guide. Documents written
// before ids were stored in the body take their id from the document name.
func fromDocument(id string, doc map[string]any) (*domain.Guide, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var guide domain.Guide
	if err := json.Unmarshal(data, &guide); err != nil {
		return nil, fmt.Errorf("failed to decode guide document %s: %w", id, err)
	}
	if guide.ID == "" {
		guide.ID = id
	}
	guide.Owner = domain.OwnerOrAnonymous(guide.Owner)
	return &guide, nil
}
