package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOrganizeWaves_BucketsBySectionInOrder(t *testing.T) {
	plan := AnalysisPlan{
		Sections: []Section{
			{ID: "architecture", Pages: []Page{{Slug: "overview"}, {Slug: "design"}}},
			{ID: "modules", Pages: []Page{{Slug: "auth-module"}}},
			{ID: "guides", Pages: []Page{{Slug: "getting-started"}}},
			{ID: "api-reference", Pages: []Page{{Slug: "api-index"}}},
		},
	}

	waves := organizeWaves(plan)
	require.Len(t, waves, 3)

	require.Equal(t, "architecture", waves[0].name)
	require.Len(t, waves[0].pages, 2)
	require.Equal(t, "overview", waves[0].pages[0].Slug)
	require.Equal(t, "design", waves[0].pages[1].Slug)

	require.Equal(t, "modules", waves[1].name)
	require.Len(t, waves[1].pages, 1)
	require.Equal(t, "auth-module", waves[1].pages[0].Slug)

	require.Equal(t, "guides", waves[2].name)
	require.Len(t, waves[2].pages, 2, "guides and api-reference share the final wave")
}

func TestOrganizeWaves_UnsectionedPagesJoinArchitectureWave(t *testing.T) {
	plan := AnalysisPlan{
		Sections: []Section{
			{ID: "", Pages: []Page{{Slug: "root-readme"}}},
		},
	}
	waves := organizeWaves(plan)
	require.Len(t, waves, 1)
	require.Equal(t, "architecture", waves[0].name)
}

func TestOrganizeWaves_EmptyPlanProducesNoWaves(t *testing.T) {
	waves := organizeWaves(AnalysisPlan{})
	require.Empty(t, waves)
}

func TestAnalysisPlan_TotalPagesSumsAcrossSections(t *testing.T) {
	plan := AnalysisPlan{
		Sections: []Section{
			{ID: "architecture", Pages: []Page{{Slug: "a"}, {Slug: "b"}}},
			{ID: "modules", Pages: []Page{{Slug: "c"}}},
		},
	}
	require.Equal(t, 3, plan.TotalPages())
}

func TestAnalysisPlan_FlattenPagesStampsSectionID(t *testing.T) {
	plan := AnalysisPlan{
		Sections: []Section{
			{ID: "modules", Pages: []Page{{Slug: "auth"}}},
		},
	}
	flat := plan.FlattenPages()
	require.Len(t, flat, 1)
	require.Equal(t, "modules", flat[0].Section)
}
