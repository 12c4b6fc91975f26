package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateLoanRequestIDs(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		userID int
		bookID int
	}{
		{"numbers", `{"utilisateurId":3,"livreId":7}`, 3, 7},
		{"strings", `{"utilisateurId":"3","livreId":" 7 "}`, 3, 7},
		{"empty string", `{"utilisateurId":"","livreId":"7"}`, 0, 7},
		{"null", `{"utilisateurId":null,"livreId":7}`, 0, 7},
		{"missing", `{"livreId":7}`, 0, 7},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var req CreateLoanRequest
			require.NoError(t, json.Unmarshal([]byte(tc.body), &req))
			assert.Equal(t, tc.userID, req.UserID)
			assert.Equal(t, tc.bookID, req.BookID)
			assert.Nil(t, req.DurationDays)
		})
	}
}

func TestCreateLoanRequestDuration(t *testing.T) {
	var req CreateLoanRequest
	require.NoError(t, json.Unmarshal([]byte(`{"utilisateurId":"1","livreId":"2","dureeEmprunt":21}`), &req))
	require.NotNil(t, req.DurationDays)
	assert.Equal(t, 21, *req.DurationDays)
}

func TestCreateLoanRequestRejectsNonNumericIDs(t *testing.T) {
	var req CreateLoanRequest
	assert.Error(t, json.Unmarshal([]byte(`{"utilisateurId":"abc","livreId":1}`), &req))
	assert.Error(t, json.Unmarshal([]byte(`{"utilisateurId":true,"livreId":1}`), &req))
}
