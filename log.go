package nanogio

import (
	"github.com/sirupsen/logrus"
)

// NewLogger returns a logger entry tagged with the given component name.
func NewLogger(tag string) *logrus.Entry {
	return logrus.NewEntry(logrus.StandardLogger()).WithField("tag", tag)
}

var loopLog = NewLogger("loop")

// TaggedHook moves the tag of entries created by [NewLogger] into the message,
// so that text output reads "[socket]: ..." instead of carrying a tag=socket field.
type TaggedHook struct{}

func (h *TaggedHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *TaggedHook) Fire(entry *logrus.Entry) error {
	if tag, ok := entry.Data["tag"].(string); ok {
		delete(entry.Data, "tag")
		entry.Message = "[" + tag + "]: " + entry.Message
	}
	return nil
}
