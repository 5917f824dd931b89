package root

// Message is the fixed greeting served at the root path.
const Message = "Secure CI/CD K8s Demo Working 🚀"

// Data is the root document.
type Data struct {
	Message string `json:"message" doc:"Deployment status message" example:"Secure CI/CD K8s Demo Working 🚀"`
}
