package models

// Channel is one TV channel of a provider together with its scheduled shows.
// ID is unique across providers; OID is the provider's native identifier.
type Channel struct {
	ID       string   `json:"id" bson:"_id"`
	OID      int64    `json:"oid" bson:"oid"`
	Provider string   `json:"provider" bson:"provider"`
	Name     string   `json:"name" bson:"name"`
	Logo     string   `json:"logo" bson:"logo"`
	Category []string `json:"category" bson:"category"`
	Shows    []Show   `json:"shows,omitempty" bson:"shows"`
}

// ShowCount returns the number of embedded shows.
func (c Channel) ShowCount() int { return len(c.Shows) }
