package travelers

// HydrateInput carries the profile claims the identity provider reported at sign-in.
// Empty strings mean "not provided".
type HydrateInput struct {
	Email       string
	DisplayName string
	PhotoURL    string
}
