package cli

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/ballot/internal/testing/fake"
)

func TestElectionID(t *testing.T) {
	id, err := ElectionID(fake.Flags{ElectionFlagName: " 42 "})
	require.NoError(t, err)
	require.Equal(t, int64(42), id.Int64())

	for _, value := range []string{"", "abc", "0", "-3", "1.5"} {
		_, err = ElectionID(fake.Flags{ElectionFlagName: value})
		require.EqualError(t, err, "invalid election identifier '"+value+"'")
	}
}

func TestElectionFlag_Check(t *testing.T) {
	flag := ElectionFlag{}

	require.NoError(t, flag.Check(fake.Flags{ElectionFlagName: "7"}))
	require.EqualError(t, flag.Check(fake.Flags{}), "invalid election identifier ''")
}

func TestVoterFlag_Check(t *testing.T) {
	single := VoterFlag{}

	require.NoError(t, single.Check(fake.Flags{}))
	require.NoError(t, single.Check(fake.Flags{VoterFlagName: "CSC/1"}))
	require.EqualError(t, single.Check(fake.Flags{VoterFlagName: "  "}),
		"voter identifier must not be blank")

	repeated := VoterFlag{Repeated: true}

	require.NoError(t, repeated.Check(fake.Flags{}))
	require.NoError(t, repeated.Check(fake.Flags{VoterFlagName: []string{"CSC/1", "CSC/2"}}))
	require.EqualError(t, repeated.Check(fake.Flags{VoterFlagName: []string{"CSC/1", ""}}),
		"voter identifier must not be blank")
}

func TestFlags_Definitions(t *testing.T) {
	var flags []Flag = []Flag{
		StringFlag{}, PathFlag{}, StringSliceFlag{}, BoolFlag{},
		ElectionFlag{}, VoterFlag{},
	}

	checked := 0
	for _, f := range flags {
		f.Flag()

		if _, ok := f.(CheckedFlag); ok {
			checked++
		}
	}

	require.Equal(t, 2, checked)
}
