package reservation

import "github.com/hitoshi/roombook/internal/model"

// CanUpdate は要求者が予約を変更できるかを判定する。
// 変更は所有者のみ可能。
func CanUpdate(r *model.ReservationWithOwner, requester model.Requester) *model.APIError {
	if r.UserID != requester.ID {
		return model.NewForbiddenError("update")
	}
	return nil
}

// CanDelete は要求者が予約を削除できるかを判定する。
// 所有者、または所有者が匿名化済みの場合は任意の認証済みユーザーが削除できる。
func CanDelete(r *model.ReservationWithOwner, requester model.Requester) *model.APIError {
	if r.UserID == requester.ID {
		return nil
	}
	if r.OwnerAnonymized() {
		return nil
	}
	return model.NewForbiddenError("delete")
}
