package domain

// Feature names a module of the back office that can be switched on per tenant.
type Feature string

const (
	FeatureCRM           Feature = "crm"
	FeatureEmailing      Feature = "emailing"
	FeatureBlog          Feature = "blog"
	FeatureShop          Feature = "shop"
	FeatureWhatsApp      Feature = "whatsapp"
	FeatureSMS           Feature = "sms"
	FeatureSocialMedia   Feature = "social_media"
	FeatureStock         Feature = "stock"
	FeatureMultiLocation Feature = "multi_location"
	FeatureMultiUser     Feature = "multi_user"
)

// AllFeatures lists every switchable feature.
func AllFeatures() []Feature {
	return []Feature{
		FeatureCRM, FeatureEmailing, FeatureBlog, FeatureShop, FeatureWhatsApp,
		FeatureSMS, FeatureSocialMedia, FeatureStock, FeatureMultiLocation, FeatureMultiUser,
	}
}

// Features is the effective on/off state of every feature for one tenant.
type Features map[Feature]bool

// Enabled reports whether f is switched on.
func (f Features) Enabled(feature Feature) bool {
	return f[feature]
}

// PlanFeatures returns the features included in a tier. Higher tiers include
// everything of the lower ones.
func PlanFeatures(plan Plan) Features {
	out := make(Features, len(AllFeatures()))
	for _, f := range AllFeatures() {
		out[f] = false
	}

	switch plan {
	case PlanPremium:
		out[FeatureStock] = true
		fallthrough
	case PlanTeam:
		out[FeatureBlog] = true
		out[FeatureShop] = true
		out[FeatureWhatsApp] = true
		out[FeatureSMS] = true
		out[FeatureSocialMedia] = true
		out[FeatureMultiLocation] = true
		fallthrough
	case PlanDuo:
		out[FeatureCRM] = true
		out[FeatureEmailing] = true
		out[FeatureMultiUser] = true
	}

	return out
}

// DeriveFeatures computes the effective flags: plan defaults, then features
// unlocked by recurring addons, then explicit per-tenant overrides.
func DeriveFeatures(plan Plan, unlocked []Feature, overrides map[Feature]bool) Features {
	out := PlanFeatures(plan)
	for _, f := range unlocked {
		if f != "" {
			out[f] = true
		}
	}
	for f, on := range overrides {
		out[f] = on
	}
	return out
}
