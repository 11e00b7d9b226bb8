package transcript

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// UnknownCustomer is the placeholder name used when none can be extracted.
const UnknownCustomer = "未知客户"

var customerNameRe = regexp.MustCompile(`姓名：\s*([^\n]+)`)

// ExtractCustomerName reads the customer's name from the platform's system
// banner, which is formatted as "姓名：<name>". Only records the platform
// itself marks as system are read.
func ExtractCustomerName(msgs []RawMessage) string {
	for _, m := range msgs {
		if !isPlatformSystem(m) {
			continue
		}
		if match := customerNameRe.FindStringSubmatch(m.Content); match != nil {
			if name := strings.TrimSpace(match[1]); name != "" {
				return name
			}
		}
	}
	return UnknownCustomer
}

// IDFromInfo strips the "ID：" label the export puts in front of the id.
func IDFromInfo(info string) string {
	info = strings.ReplaceAll(info, "ID：", "")
	info = strings.ReplaceAll(info, "ID:", "")
	return strings.TrimSpace(info)
}

// Repair fills in metadata the export leaves out: conversation id, last
// activity date, canonical message times and the customer's name. It only
// adds or normalizes fields and never touches message content.
func Repair(c *Conversation) {
	if c == nil {
		return
	}
	if strings.TrimSpace(string(c.ID)) == "" {
		if id := IDFromInfo(c.Info); id != "" {
			c.ID = ID(id)
		} else {
			c.ID = ID("UNKNOWN_" + uuid.NewString())
		}
	}
	if c.LastTime == "" && c.Date != "" {
		c.LastTime = c.Date
	}
	last := defaultTime
	for i := range c.Messages {
		t := CanonicalTime(c.Messages[i].Time, last)
		c.Messages[i].Time = t
		last = t
	}
	if c.CustomerName == "" {
		c.CustomerName = ExtractCustomerName(c.Messages)
	}
}

func isPlatformSystem(m RawMessage) bool {
	return strings.EqualFold(strings.TrimSpace(m.Type), rawTypeSystem) || strings.TrimSpace(m.Sender) == rawSenderSystem
}
