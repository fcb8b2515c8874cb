package backlog

import "github.com/steveyegge/debtneg/internal/types"

// DemoTickets returns the fixed backlog used when no real source is available.
// A fresh slice is returned on every call.
func DemoTickets() []types.FeatureTicket {
	return []types.FeatureTicket{
		{
			Key: "PLAT-101", Title: "Add real-time fraud alerts",
			StoryPoints: 8, Priority: "High", Status: DefaultStatus,
			Description: "Product wants real-time fraud detection instead of nightly batch.",
		},
		{
			Key: "PLAT-102", Title: "Dynamic pricing engine",
			StoryPoints: 13, Priority: "Critical", Status: DefaultStatus,
			Description: "Flash sales require pricing changes without code deploy.",
		},
		{
			Key: "PLAT-103", Title: "Personalized recommendations",
			StoryPoints: 8, Priority: "High", Status: DefaultStatus,
			Description: "Requires refactoring ML pipeline and upgrading TensorFlow.",
		},
		{
			Key: "PLAT-104", Title: "Upgrade payment gateway to Stripe v3",
			StoryPoints: 5, Priority: "Medium", Status: DefaultStatus,
			Description: "Blocked by outdated dependencies in shared-commons library.",
		},
		{
			Key: "PLAT-105", Title: "Customer churn predictor",
			StoryPoints: 13, Priority: "High", Status: DefaultStatus,
			Description: "New ML feature. Blocked by fragile existing ML pipeline.",
		},
	}
}
