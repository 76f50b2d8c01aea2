package model

// FolderMap maps each priority label to its IMAP folder. It is configuration:
// read once at startup and never mutated afterwards.
type FolderMap struct {
	High   string
	Medium string
	Low    string
}

// DefaultFolderMap returns the folder names used when none are configured.
func DefaultFolderMap() FolderMap {
	return FolderMap{
		High:   "AI_HIGH_PRIORITY",
		Medium: "AI_MEDIUM_PRIORITY",
		Low:    "AI_LOW_PRIORITY_RECOVERY",
	}
}

// FolderFor returns the folder mapped to the given label.
func (m FolderMap) FolderFor(l Label) string {
	switch l {
	case LabelHigh:
		return m.High
	case LabelMedium:
		return m.Medium
	case LabelLow:
		return m.Low
	}
	return ""
}

// All returns every mapped folder name, in label order.
func (m FolderMap) All() []string {
	return []string{m.High, m.Medium, m.Low}
}
