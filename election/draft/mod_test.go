package draft

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/ballot/election"
	"go.dedis.ch/ballot/internal/testing/fake"
)

func TestAggregator_Empty(t *testing.T) {
	agg := NewAggregator()

	require.False(t, agg.Status(election.SectionBasicInfo).Valid)
	require.False(t, agg.Status(election.SectionComplete).Valid)
	require.Equal(t, election.SectionBasicInfo, agg.Gate().Current())

	// An empty register is accepted at creation.
	require.True(t, agg.Status(election.SectionVoters).Valid)
}

func TestAggregator_Load(t *testing.T) {
	agg := NewAggregator()

	statuses := agg.Load(makeDraft())
	for sec, status := range statuses {
		require.True(t, status.Valid, "%v: %v", sec, status.Errors)
	}

	require.Equal(t, election.SectionComplete, agg.Gate().Current())

	d, errs := agg.Materialize()
	require.True(t, errs.Valid(), errs.Error())
	require.Equal(t, "Student Union 2030", d.BasicInfo.Name)
	require.Equal(t, "2030-03-01T08:00:00+01:00", d.BasicInfo.Start)
	require.Equal(t, "President", d.Candidates[1].Category)
}

func TestAggregator_UpdateReturnsSectionStatus(t *testing.T) {
	agg := NewAggregator()
	agg.Load(makeDraft())

	status := agg.UpdateVoters([]election.Voter{
		{Name: "Ada Obi", ExternalID: "CSC/1", Level: "100"},
		{Name: "Bola Ade", ExternalID: "csc/1", Level: "200"},
	})

	require.Equal(t, election.SectionVoters, status.Section)
	require.False(t, status.Valid)
	require.Len(t, status.Errors, 1)
	require.Equal(t, "voters[1].id", status.Errors[0].Path())

	require.Equal(t, election.SectionVoters, agg.Gate().Current())
	require.False(t, agg.Gate().Accessible(election.SectionPolling))
}

// Renaming a category invalidates the candidates that still reference the
// old name, and the later sections become inaccessible.
func TestAggregator_FlagOrphans(t *testing.T) {
	agg := NewAggregator()
	agg.Load(makeDraft())

	status := agg.UpdateCategories([]string{"Chairperson", "Secretary"})
	require.True(t, status.Valid)

	cands := agg.Status(election.SectionCandidates)
	require.False(t, cands.Valid)
	require.Len(t, agg.Draft().Candidates, 3)

	var msgs []string
	for _, err := range cands.Errors {
		msgs = append(msgs, err.Error())
	}

	require.Contains(t, msgs, `candidates[0].category: unknown category "President"`)
	require.Contains(t, msgs, `candidates: category "Chairperson" has no candidate`)

	require.Equal(t, election.SectionCandidates, agg.Gate().Current())
	require.False(t, agg.Gate().Accessible(election.SectionVoters))
	require.False(t, agg.Gate().Accessible(election.SectionPolling))

	_, errs := agg.Materialize()
	require.False(t, errs.Valid())
}

func TestAggregator_PruneOrphans(t *testing.T) {
	logger, check := fake.CheckLog("candidates of removed categories pruned")

	agg := NewAggregator(WithOrphanPolicy(PruneOrphans), WithLogger(logger))
	agg.Load(makeDraft())

	agg.UpdateCategories([]string{"Secretary"})
	require.Len(t, agg.Draft().Candidates, 1)
	require.True(t, agg.Status(election.SectionCandidates).Valid)
	check(t)
}

func TestAggregator_InvalidCategoriesBlockCandidates(t *testing.T) {
	agg := NewAggregator(WithLogger(zerolog.Nop()))
	agg.Load(makeDraft())

	agg.UpdateCategories(nil)

	status := agg.Status(election.SectionCandidates)
	require.False(t, status.Valid)
	require.Equal(t, "candidates: the categories must be valid first", status.Errors.Error())
}

func TestAggregator_Watch(t *testing.T) {
	agg := NewAggregator()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	snaps := agg.Gate().Watch(ctx)

	d := makeDraft()
	agg.UpdateBasicInfo(d.BasicInfo)

	snap := <-snaps
	require.Equal(t, election.SectionCategories, snap.Current)
}

func TestAggregator_DraftIsCopy(t *testing.T) {
	agg := NewAggregator()
	agg.Load(makeDraft())

	d := agg.Draft()
	d.Candidates[0].Name = "Mallory"
	d.Categories[0] = "Nope"

	require.Equal(t, "Jane Doe", agg.Draft().Candidates[0].Name)
	require.Equal(t, "President", agg.Draft().Categories[0])
}

func TestReferences(t *testing.T) {
	errs := References(election.Draft{
		Categories: []string{"President", "Treasurer"},
		Candidates: []election.Candidate{
			{Name: "Jane Doe", ExternalID: "C1", Category: "President"},
			{Name: "John Roe", ExternalID: "C2", Category: "Dean"},
		},
	})

	require.Equal(t, `candidates[1].category: category "Dean" is not part of the election; `+
		`candidates: category "Treasurer" has no candidate`, errs.Error())
}

func TestLoadYAML(t *testing.T) {
	doc := `
basicInfo:
  name: Student Union 2030
  description: Yearly election of the student union.
  start: "2030-03-01T08:00"
  end: "2030-03-01T18:00"
  timezone: Africa/Lagos
categories: [President]
candidates:
  - {name: Jane Doe, id: C1, category: President}
voters:
  - {name: Ada Obi, id: CSC/1, level: "100"}
polling:
  officers:
    - {address: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", label: Returning officer}
  units:
    - {address: "fB6916095ca1df60bB79Ce92cE3Ea74c37c5d359", label: Main hall}
`

	d, err := LoadYAML([]byte(doc))
	require.NoError(t, err)
	require.Equal(t, "Africa/Lagos", d.BasicInfo.Timezone)
	require.Equal(t, "C1", d.Candidates[0].ExternalID)
	require.Len(t, d.Polling.Units, 1)

	statuses := NewAggregator().Load(d)
	require.True(t, statuses[election.SectionComplete].Valid)

	_, err = LoadYAML([]byte("unknown: 1"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to decode draft: ")
}

// -----------------------------------------------------------------------------
// Utility functions

func makeDraft() election.Draft {
	return election.Draft{
		BasicInfo: election.BasicInfo{
			Name:        " Student Union 2030 ",
			Description: "Yearly election of the student union.",
			Start:       "2030-03-01T08:00",
			End:         "2030-03-01T18:00",
			Timezone:    "Africa/Lagos",
		},
		Categories: []string{"President", "Secretary"},
		Candidates: []election.Candidate{
			{Name: "Jane Doe", ExternalID: "C1", Category: "President"},
			{Name: "John Roe", ExternalID: "C2", Category: "president"},
			{Name: "Amaka Eze", ExternalID: "C3", Category: "Secretary"},
		},
		Voters: []election.Voter{
			{Name: "Ada Obi", ExternalID: "CSC/1", Level: "100", Department: "Computer Science"},
		},
		Polling: election.Polling{
			Officers: []election.Staff{
				{Address: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", Label: "Returning officer"},
			},
			Units: []election.Staff{
				{Address: "fB6916095ca1df60bB79Ce92cE3Ea74c37c5d359", Label: "Main hall"},
			},
		},
	}
}
