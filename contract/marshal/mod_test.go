package marshal

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/ballot/contract/evm"
	"go.dedis.ch/ballot/election"
	"go.dedis.ch/ballot/internal/testing/fake"
)

var now = time.Date(2030, 1, 2, 10, 0, 0, 0, time.UTC)

func clock() time.Time {
	return now
}

func TestMarshal(t *testing.T) {
	p := Marshal(makeDraft(), WithClock(clock))

	require.Empty(t, p.Anomalies())
	require.False(t, p.ScheduleReplaced())
	require.Equal(t, "Student Union 2030", p.Name())
	require.Equal(t, now.Add(24*time.Hour).Unix(), p.Start().Int64())
	require.Equal(t, now.Add(48*time.Hour).Unix(), p.End().Int64())
	require.Equal(t, []string{"President", "Secretary"}, p.Categories())

	require.Equal(t, []evm.CandidateTuple{
		{Name: "Jane Doe", MatricNo: "C1", Category: "President"},
		{Name: "Amaka Eze", MatricNo: "C3", Category: "Secretary"},
	}, p.Candidates())

	require.Equal(t, []evm.VoterTuple{
		{Name: "Ada Obi", MatricNo: "CSC/1", Level: "100", Department: ""},
	}, p.Voters())

	require.Equal(t, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", p.Officers()[0].Hex())
	require.Equal(t, "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359", p.Units()[0].Hex())
	require.Equal(t, 1, p.UnitSources())
	require.Equal(t, 1, p.OfficerSources())

	args := p.Args()
	require.Len(t, args, 8)

	_, err := evm.MustCodec().Pack(evm.MethodCreateElection, args...)
	require.NoError(t, err)
}

// A schedule in the past is replaced by a window starting in five minutes.
func TestMarshal_ScheduleInThePast(t *testing.T) {
	logger, check := fake.CheckLog("schedule replaced by the fallback window")

	d := makeDraft()
	d.BasicInfo.Start = now.Add(-24 * time.Hour).Format(time.RFC3339)
	d.BasicInfo.End = now.Add(24 * time.Hour).Format(time.RFC3339)

	p := Marshal(d, WithClock(clock), WithLogger(logger))

	require.True(t, p.ScheduleReplaced())
	require.Equal(t, now.Add(5*time.Minute).Unix(), p.Start().Int64())
	require.Equal(t, now.Add(65*time.Minute).Unix(), p.End().Int64())

	anomalies := p.Anomalies()
	require.Len(t, anomalies, 1)
	require.Equal(t, ScheduleReplaced, anomalies[0].Kind)
	require.Equal(t, "startTime: schedule replaced by the fallback window: the start is not in the future",
		anomalies[0].String())

	check(t)
}

func TestMarshal_ScheduleFallbacks(t *testing.T) {
	cases := []struct {
		start, end string
		reason     string
	}{
		{"", "2030-02-01T10:00", "start: empty instant"},
		{"tomorrow", "2030-02-01T10:00", "start: unrecognized instant 'tomorrow'"},
		{"2030-02-01T10:00", "-5", "end: invalid unix time '-5'"},
		{"0", "2030-02-01T10:00", "start: invalid unix time '0'"},
		{"2030-02-01T10:00", "2030-02-01T10:00", "the end is not after the start"},
		{"2030-02-01T10:00", "2030-01-01T10:00", "the end is not after the start"},
		{now.Format(time.RFC3339), "2030-02-01T10:00", "the start is not in the future"},
	}

	for _, c := range cases {
		d := makeDraft()
		d.BasicInfo.Start = c.start
		d.BasicInfo.End = c.end

		p := Marshal(d, WithClock(clock))

		require.True(t, p.ScheduleReplaced(), c.reason)
		require.Equal(t, "schedule replaced by the fallback window: "+c.reason, p.Anomalies()[0].Message)
		require.True(t, p.End().Cmp(p.Start()) > 0)
		require.True(t, p.Start().Int64() > now.Unix())
	}
}

// Unix seconds of the form are kept whatever their size.
func TestMarshal_UnixSchedule(t *testing.T) {
	d := makeDraft()
	d.BasicInfo.Start = "1898578800"
	d.BasicInfo.End = " 123456789012345678901234567890 "

	p := Marshal(d, WithClock(clock))

	require.False(t, p.ScheduleReplaced())
	require.Equal(t, int64(1898578800), p.Start().Int64())
	require.Equal(t, "123456789012345678901234567890", p.End().String())
}

// A malformed address is dropped and the count of the source is kept.
func TestMarshal_InvalidAddress(t *testing.T) {
	d := makeDraft()
	d.Polling.Units = append(d.Polling.Units, election.Staff{Address: "abc123", Label: "Annex"})

	p := Marshal(d, WithClock(clock))

	require.Len(t, p.Units(), 1)
	require.Equal(t, 2, p.UnitSources())

	anomalies := p.Anomalies()
	require.Len(t, anomalies, 1)
	require.Equal(t, AddressDropped, anomalies[0].Kind)
	require.Equal(t, `pollingUnitAddresses[1]: invalid address "abc123" dropped`, anomalies[0].String())
}

// The conversion never panics and always produces a well-formed value.
func TestMarshal_Total(t *testing.T) {
	drafts := []election.Draft{
		{},
		{
			BasicInfo:  election.BasicInfo{Start: "99999999999999999999999", End: "abc", Timezone: "Mars/Base"},
			Categories: []string{"", "  "},
			Candidates: []election.Candidate{{}},
			Voters:     []election.Voter{{}},
			Polling: election.Polling{
				Officers: []election.Staff{{Address: "0x"}, {Address: "0xZZb6053F3E94C9b9A09f33669435E7Ef1BeAed"}},
				Units:    []election.Staff{{}},
			},
		},
	}

	for _, d := range drafts {
		p := Marshal(d, WithClock(clock))

		require.NotNil(t, p.Start())
		require.True(t, p.ScheduleReplaced())
		require.Empty(t, p.Units())
		require.Empty(t, p.Officers())
		require.Len(t, p.Voters(), len(d.Voters))
		require.NotNil(t, p.Voters())
	}
}

func TestMarshal_Idempotent(t *testing.T) {
	d := makeDraft()
	d.BasicInfo.Start = "garbage"
	d.Polling.Officers = append(d.Polling.Officers, election.Staff{Address: "nope"})

	first := Marshal(d, WithClock(clock))
	second := Marshal(d.Clone(), WithClock(clock))

	require.Equal(t, first, second)
}

func TestParameters_Immutable(t *testing.T) {
	p := Marshal(makeDraft(), WithClock(clock))

	p.Start().SetInt64(0)
	p.Candidates()[0].Name = "Mallory"
	p.Units()[0] = common.Address{}
	p.Categories()[0] = "Dean"

	require.NotEqual(t, int64(0), p.Start().Int64())
	require.Equal(t, "Jane Doe", p.Candidates()[0].Name)
	require.NotEqual(t, common.Address{}, p.Units()[0])
	require.Equal(t, "President", p.Categories()[0])

	require.Equal(t, int64(0), Parameters{}.Start().Int64())
}

func TestCoerceUint(t *testing.T) {
	require.Equal(t, big.NewInt(42), CoerceUint(" 42 "))
	require.Equal(t, "123456789012345678901234567890", CoerceUint("123456789012345678901234567890").String())
	require.Equal(t, new(big.Int), CoerceUint("-1"))
	require.Equal(t, new(big.Int), CoerceUint("1e3"))
	require.Equal(t, new(big.Int), CoerceUint(""))
}

func TestAddress(t *testing.T) {
	addr, ok := Address(" 5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	require.True(t, ok)
	require.Equal(t, "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", addr.Hex())

	_, ok = Address("abc123")
	require.False(t, ok)
}

func TestAnomalyKind_String(t *testing.T) {
	require.Equal(t, "address dropped", AddressDropped.String())
	require.Equal(t, "schedule replaced", ScheduleReplaced.String())
	require.Equal(t, "unknown", AnomalyKind(9).String())
}

// -----------------------------------------------------------------------------
// Utility functions

func makeDraft() election.Draft {
	return election.Draft{
		BasicInfo: election.BasicInfo{
			Name:        " Student Union 2030 ",
			Description: "Yearly election of the student union.",
			Start:       now.Add(24 * time.Hour).Format(time.RFC3339),
			End:         now.Add(48 * time.Hour).Format(time.RFC3339),
		},
		Categories: []string{" President", "Secretary"},
		Candidates: []election.Candidate{
			{Name: "Jane Doe ", ExternalID: "C1", Category: "President"},
			{Name: "Amaka Eze", ExternalID: " C3", Category: "Secretary"},
		},
		Voters: []election.Voter{
			{Name: "Ada Obi", ExternalID: "CSC/1", Level: "100"},
		},
		Polling: election.Polling{
			Officers: []election.Staff{
				{Address: "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", Label: "Returning officer"},
			},
			Units: []election.Staff{
				{Address: "fB6916095ca1df60bB79Ce92cE3Ea74c37c5d359", Label: "Main hall"},
			},
		},
	}
}
