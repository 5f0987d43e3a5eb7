package orchestrator

import "fmt"

// Notice is a short message for the user, shown once.
type Notice struct {
	Title       string `json:"title"`
	Message     string `json:"message,omitempty"`
	Destructive bool   `json:"destructive,omitempty"`
}

func (n Notice) String() string {
	if n.Message == "" {
		return n.Title
	}
	return fmt.Sprintf("%s: %s", n.Title, n.Message)
}

var (
	noticeFileTooLarge = Notice{
		Title:       "File too large",
		Message:     "Please upload an image smaller than 20MB.",
		Destructive: true,
	}
	noticeDetected = Notice{
		Title:   "Ingredients Detected!",
		Message: "We've added the detected ingredients to your list.",
	}
	noticeNotEnough = Notice{
		Title:       "Not enough ingredients",
		Message:     "Please add at least 3 ingredients to generate recipes.",
		Destructive: true,
	}
	noticeLoginRequired = Notice{
		Title:       "Please log in to save recipes.",
		Destructive: true,
	}
	noticeFavoriteFailed = Notice{
		Title:       "Error",
		Message:     "Could not update favorites.",
		Destructive: true,
	}
)

func detectionFailed(message string) Notice {
	return Notice{Title: "Detection Failed", Message: message, Destructive: true}
}

func generationFailed(message string) Notice {
	return Notice{Title: "Generation Failed", Message: message, Destructive: true}
}

func favoriteToggled(title string, saved bool) Notice {
	if saved {
		return Notice{
			Title:   "Recipe Saved!",
			Message: fmt.Sprintf(`"%s" has been added to your favorites.`, title),
		}
	}
	return Notice{
		Title:   "Recipe Unsaved",
		Message: fmt.Sprintf(`"%s" has been removed from your favorites.`, title),
	}
}
