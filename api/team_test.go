package api

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"polyterm/store"
)

func TestTeamLifecycleOverHTTP(t *testing.T) {
	s, st := newTestServer(t, Deps{})
	ownerID, ownerToken := newTestUser(t, st, "owner@example.com")
	memberID, memberToken := newTestUser(t, st, "member@example.com")
	_, strangerToken := newTestUser(t, st, "stranger@example.com")

	// create; creator becomes OWNER
	w := doJSON(s, http.MethodPost, "/api/teams", ownerToken, gin.H{"name": "Desk A"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var team store.Team
	decodeBody(t, w, &team)
	require.Len(t, team.Members, 1)
	assert.Equal(t, store.RoleOwner, team.Members[0].Role)

	// non-members cannot see the team
	w = doJSON(s, http.MethodGet, "/api/teams/"+team.ID, strangerToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// owner adds a member
	w = doJSON(s, http.MethodPost, "/api/teams/"+team.ID+"/members", ownerToken, gin.H{
		"user_id": memberID,
		"role":    store.RoleMember,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// adding an unknown user is a 404
	w = doJSON(s, http.MethodPost, "/api/teams/"+team.ID+"/members", ownerToken, gin.H{
		"user_id": "ghost",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	// OWNER role cannot be granted through the members endpoint
	w = doJSON(s, http.MethodPost, "/api/teams/"+team.ID+"/members", ownerToken, gin.H{
		"user_id": memberID,
		"role":    store.RoleOwner,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// a plain member cannot manage the roster
	w = doJSON(s, http.MethodPost, "/api/teams/"+team.ID+"/members", memberToken, gin.H{
		"user_id": ownerID,
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = doJSON(s, http.MethodDelete, "/api/teams/"+team.ID, memberToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// promote the member to admin
	w = doJSON(s, http.MethodPut, "/api/teams/"+team.ID+"/members/"+memberID, ownerToken, gin.H{
		"role": store.RoleAdmin,
	})
	require.Equal(t, http.StatusOK, w.Code)

	// owner cannot leave while owning
	w = doJSON(s, http.MethodPost, "/api/teams/"+team.ID+"/leave", ownerToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// transfer: only the owner may initiate
	w = doJSON(s, http.MethodPost, "/api/teams/"+team.ID+"/transfer-ownership", memberToken, gin.H{
		"to_user_id": memberID,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(s, http.MethodPost, "/api/teams/"+team.ID+"/transfer-ownership", ownerToken, gin.H{
		"to_user_id": memberID,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// exactly one OWNER afterwards; the old owner is ADMIN
	members, err := st.Team().Members(team.ID)
	require.NoError(t, err)
	owners := 0
	for _, m := range members {
		if m.Role == store.RoleOwner {
			owners++
			assert.Equal(t, memberID, m.UserID)
		}
		if m.UserID == ownerID {
			assert.Equal(t, store.RoleAdmin, m.Role)
		}
	}
	assert.Equal(t, 1, owners)

	// the previous owner can leave now
	w = doJSON(s, http.MethodPost, "/api/teams/"+team.ID+"/leave", ownerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// new owner deletes the team
	w = doJSON(s, http.MethodDelete, "/api/teams/"+team.ID, memberToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = doJSON(s, http.MethodGet, "/api/teams/"+team.ID, memberToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCommentEndpoints(t *testing.T) {
	s, st := newTestServer(t, Deps{})
	_, token := newTestUser(t, st, "commenter@example.com")
	_, otherToken := newTestUser(t, st, "reader@example.com")

	// market_id is mandatory for listing
	w := doJSON(s, http.MethodGet, "/api/comments", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(s, http.MethodPost, "/api/comments", token, gin.H{
		"market_id": "m1",
		"body":      "This market is mispriced",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var root store.Comment
	decodeBody(t, w, &root)

	// threaded reply
	w = doJSON(s, http.MethodPost, "/api/comments", otherToken, gin.H{
		"market_id": "m1",
		"parent_id": root.ID,
		"body":      "Disagree, the book is thin",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(s, http.MethodGet, "/api/comments?market_id=m1", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []store.Comment
	decodeBody(t, w, &list)
	assert.Len(t, list, 2)

	// only the author can delete
	w = doJSON(s, http.MethodDelete, "/api/comments/"+root.ID, otherToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = doJSON(s, http.MethodDelete, "/api/comments/"+root.ID, token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
