package workflow

import "extflow/internal/domain"

// DocumentPermissions are the rights an actor has over project documents.
type DocumentPermissions struct {
	CanUpload bool `json:"can_upload"`
	CanEdit   bool `json:"can_edit"`
	CanDelete bool `json:"can_delete"`
}

// Permissions applies the document policy. doc may be nil when no document
// exists yet; edit and delete then fall back to the privileged roles.
func Permissions(p domain.Project, actor domain.Actor, doc *domain.Document) DocumentPermissions {
	caps := Classify(actor)
	privileged := caps.Privileged()
	canUpload := privileged ||
		(caps.Formulador && isUser(actor, p.CreatedBy.ID) && p.Status == domain.StatusEnFormulacion) ||
		(caps.DirectorPrograma && p.Status == domain.StatusEnRevisionDirector) ||
		(caps.Decano && p.Status == domain.StatusEnRevisionDecano)

	owner := doc != nil && isUser(actor, doc.UploadedBy.ID)
	canModify := privileged || (canUpload && owner)
	return DocumentPermissions{
		CanUpload: canUpload,
		CanEdit:   canModify,
		CanDelete: canModify,
	}
}

// isUser compares ids and never matches an anonymous actor.
func isUser(actor domain.Actor, userID string) bool {
	return actor.UserID != "" && actor.UserID == userID
}
