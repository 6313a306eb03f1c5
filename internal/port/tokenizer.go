package port

// TokenCounter estimates the number of model tokens a text would consume.
type TokenCounter interface {
	Count(text string) int
}
