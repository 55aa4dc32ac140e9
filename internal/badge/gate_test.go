package badge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trust-service/internal/model"
)

func activeDisclosure(kind string) *model.TrustDisclosure {
	return &model.TrustDisclosure{Kind: kind, IsActive: true}
}

func TestKindFor(t *testing.T) {
	kind, err := KindFor(FieldFeatured)
	require.NoError(t, err)
	assert.Equal(t, model.DisclosurePromotion, kind)

	kind, err = KindFor(FieldVerificationLevel)
	require.NoError(t, err)
	assert.Equal(t, model.DisclosureVerification, kind)

	_, err = KindFor(Field("rating"))
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestIsElevation(t *testing.T) {
	tests := []struct {
		name    string
		field   Field
		listing model.Listing
		next    string
		want    bool
		wantErr error
	}{
		{
			name:    "turning featured on is an elevation",
			field:   FieldFeatured,
			listing: model.Listing{Featured: false},
			next:    "true",
			want:    true,
		},
		{
			name:    "turning featured off is not",
			field:   FieldFeatured,
			listing: model.Listing{Featured: true},
			next:    "false",
			want:    false,
		},
		{
			name:    "keeping featured on is not",
			field:   FieldFeatured,
			listing: model.Listing{Featured: true},
			next:    "true",
			want:    false,
		},
		{
			name:    "featured rejects non-boolean",
			field:   FieldFeatured,
			listing: model.Listing{},
			next:    "yes",
			wantErr: ErrUnknownValue,
		},
		{
			name:    "none to basic is an elevation",
			field:   FieldVerificationLevel,
			listing: model.Listing{VerificationLevel: model.VerificationNone},
			next:    model.VerificationBasic,
			want:    true,
		},
		{
			name:    "basic to licence_verified is an elevation",
			field:   FieldVerificationLevel,
			listing: model.Listing{VerificationLevel: model.VerificationBasic},
			next:    model.VerificationLicenceVerified,
			want:    true,
		},
		{
			name:    "enhanced to basic is a downgrade",
			field:   FieldVerificationLevel,
			listing: model.Listing{VerificationLevel: model.VerificationEnhanced},
			next:    model.VerificationBasic,
			want:    false,
		},
		{
			name:    "same level is not an elevation",
			field:   FieldVerificationLevel,
			listing: model.Listing{VerificationLevel: model.VerificationBasic},
			next:    model.VerificationBasic,
			want:    false,
		},
		{
			name:    "unknown verification level rejected",
			field:   FieldVerificationLevel,
			listing: model.Listing{VerificationLevel: model.VerificationNone},
			next:    "platinum",
			wantErr: ErrUnknownValue,
		},
		{
			name:    "corrupted stored level treated as floor",
			field:   FieldVerificationLevel,
			listing: model.Listing{VerificationLevel: "garbage"},
			next:    model.VerificationBasic,
			want:    true,
		},
		{
			name:    "unknown field rejected",
			field:   Field("rating"),
			listing: model.Listing{},
			next:    "5",
			wantErr: ErrUnknownField,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := IsElevation(tt.field, &tt.listing, tt.next)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFeaturedAcceptsOnlyCanonicalSpellings(t *testing.T) {
	// The write path persists exactly "true"; any spelling the gate lets
	// through must therefore be one the write applies identically. Looser
	// boolean forms are rejected, not silently mapped to false.
	listing := model.Listing{Featured: false}

	for _, v := range []string{"1", "0", "t", "f", "TRUE", "True", "FALSE", "False", "yes"} {
		_, err := IsElevation(FieldFeatured, &listing, v)
		assert.ErrorIs(t, err, ErrUnknownValue, "IsElevation(%q)", v)

		_, err = IsNoop(FieldFeatured, &listing, v)
		assert.ErrorIs(t, err, ErrUnknownValue, "IsNoop(%q)", v)

		err = CheckTransition(FieldFeatured, &listing, v, activeDisclosure(model.DisclosurePromotion))
		assert.ErrorIs(t, err, ErrUnknownValue, "CheckTransition(%q)", v)
	}

	elevation, err := IsElevation(FieldFeatured, &listing, "true")
	require.NoError(t, err)
	assert.True(t, elevation)

	elevation, err = IsElevation(FieldFeatured, &listing, "false")
	require.NoError(t, err)
	assert.False(t, elevation)
}

func TestIsNoop(t *testing.T) {
	listing := model.Listing{Featured: true, VerificationLevel: model.VerificationBasic}

	noop, err := IsNoop(FieldFeatured, &listing, "true")
	require.NoError(t, err)
	assert.True(t, noop)

	noop, err = IsNoop(FieldFeatured, &listing, "false")
	require.NoError(t, err)
	assert.False(t, noop)

	noop, err = IsNoop(FieldVerificationLevel, &listing, model.VerificationBasic)
	require.NoError(t, err)
	assert.True(t, noop)

	noop, err = IsNoop(FieldVerificationLevel, &listing, model.VerificationEnhanced)
	require.NoError(t, err)
	assert.False(t, noop)

	_, err = IsNoop(FieldVerificationLevel, &listing, "platinum")
	assert.ErrorIs(t, err, ErrUnknownValue)
}

func TestCheckTransitionGatesElevation(t *testing.T) {
	listing := model.Listing{VerificationLevel: model.VerificationNone}

	// Elevation without any active disclosure is rejected.
	err := CheckTransition(FieldVerificationLevel, &listing, model.VerificationBasic, nil)
	assert.ErrorIs(t, err, ErrGateViolation)

	// Elevation with an active disclosure of the matching kind passes.
	err = CheckTransition(FieldVerificationLevel, &listing, model.VerificationBasic,
		activeDisclosure(model.DisclosureVerification))
	assert.NoError(t, err)

	// A disclosure of the wrong kind does not satisfy the gate: the two
	// gates are independent.
	err = CheckTransition(FieldVerificationLevel, &listing, model.VerificationBasic,
		activeDisclosure(model.DisclosurePromotion))
	assert.ErrorIs(t, err, ErrGateViolation)

	// An inactive disclosure of the right kind does not satisfy the gate.
	inactive := &model.TrustDisclosure{Kind: model.DisclosureVerification, IsActive: false}
	err = CheckTransition(FieldVerificationLevel, &listing, model.VerificationBasic, inactive)
	assert.ErrorIs(t, err, ErrGateViolation)
}

func TestCheckTransitionFeaturedGate(t *testing.T) {
	listing := model.Listing{Featured: false}

	err := CheckTransition(FieldFeatured, &listing, "true", nil)
	assert.ErrorIs(t, err, ErrGateViolation)

	err = CheckTransition(FieldFeatured, &listing, "true", activeDisclosure(model.DisclosurePromotion))
	assert.NoError(t, err)

	// Verification disclosure never unlocks the promotion gate.
	err = CheckTransition(FieldFeatured, &listing, "true", activeDisclosure(model.DisclosureVerification))
	assert.ErrorIs(t, err, ErrGateViolation)
}

func TestCheckTransitionDowngradeNeedsNoDisclosure(t *testing.T) {
	featured := model.Listing{Featured: true}
	err := CheckTransition(FieldFeatured, &featured, "false", nil)
	assert.NoError(t, err)

	verified := model.Listing{VerificationLevel: model.VerificationLicenceVerified}
	err = CheckTransition(FieldVerificationLevel, &verified, model.VerificationBasic, nil)
	assert.NoError(t, err)
}

func TestCheckTransitionKeepsElevatedStateAfterDeactivation(t *testing.T) {
	// A listing elevated while its disclosure was active keeps the badge
	// when the disclosure goes away; only further elevation is blocked.
	listing := model.Listing{VerificationLevel: model.VerificationBasic}

	err := CheckTransition(FieldVerificationLevel, &listing, model.VerificationBasic, nil)
	assert.NoError(t, err)

	err = CheckTransition(FieldVerificationLevel, &listing, model.VerificationEnhanced, nil)
	assert.ErrorIs(t, err, ErrGateViolation)
}

func TestCheckTransitionUnknownInputs(t *testing.T) {
	listing := model.Listing{}

	err := CheckTransition(Field("rating"), &listing, "5", nil)
	assert.ErrorIs(t, err, ErrUnknownField)

	err = CheckTransition(FieldFeatured, &listing, "maybe", nil)
	assert.ErrorIs(t, err, ErrUnknownValue)
}
