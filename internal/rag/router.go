package rag

// Knowledge-source categories as stored on chunks and vector points.
const (
	SourceTypeBook        = "book"
	SourceTypeProductList = "product_list"
	SourceTypeFAQ         = "qa"
	SourceTypeTranscript  = "transcript"
	SourceTypeLiveCall    = "live_call"
	SourceTypeCommunityQA = "community_qa"
)

// intentSourceRoutes maps each intent to the knowledge-source categories
// worth searching for it. nil means "search all categories".
var intentSourceRoutes = map[Intent][]string{
	IntentProductRecommendation: {SourceTypeProductList, SourceTypeBook, SourceTypeCommunityQA},
	IntentIngredientQuestion:    {SourceTypeBook, SourceTypeFAQ},
	IntentHairCareAdvice:        {SourceTypeBook, SourceTypeTranscript, SourceTypeFAQ, SourceTypeProductList, SourceTypeCommunityQA},
	IntentRoutineHelp:           {SourceTypeBook, SourceTypeTranscript, SourceTypeFAQ, SourceTypeProductList, SourceTypeCommunityQA},
	IntentDiagnosis:             {SourceTypeBook, SourceTypeFAQ, SourceTypeLiveCall, SourceTypeCommunityQA},
	IntentPhotoAnalysis:         {SourceTypeBook, SourceTypeFAQ, SourceTypeLiveCall},
	IntentGeneralChat:           nil,
	IntentFollowup:              nil,
}

// AllowedSources returns the knowledge-source categories to search for the
// given intent. nil means no restriction. Unknown intents deliberately route
// unrestricted: an empty set would silently return no evidence at all.
func AllowedSources(intent Intent) []string {
	sources, ok := intentSourceRoutes[intent]
	if !ok {
		return nil
	}
	return sources
}
